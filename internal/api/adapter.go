package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"tutorlink/internal/breaker"
	"tutorlink/internal/constants"
	apperrors "tutorlink/internal/errors"
	"tutorlink/internal/metrics"
	"tutorlink/internal/offline"
	"tutorlink/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Request is a normalized outgoing request as seen by the adapter.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Adapter decides, per request, between the live network and the
// offline cache/queue. The decision is a state machine over two axes:
// connectivity and request kind (GET vs mutation).
//
//	online  + GET      -> live; cache on success; cache fallback on network error
//	online  + mutation -> live; enqueue + synthetic success on network error
//	offline + GET      -> cache, or a NO_OFFLINE_DATA error
//	offline + mutation -> enqueue + synthetic success
//
// Application-level failures (a reachable server answering 4xx/5xx)
// are returned as live responses and never queued or cached.
type Adapter struct {
	transport *http.Client
	service   *offline.Service
	breaker   *breaker.Breaker
	logger    *logrus.Logger
	metrics   *metrics.Registry
}

func NewAdapter(transport *http.Client, service *offline.Service, br *breaker.Breaker, logger *logrus.Logger, registry *metrics.Registry) *Adapter {
	return &Adapter{
		transport: transport,
		service:   service,
		breaker:   br,
		logger:    logger,
		metrics:   registry,
	}
}

// Do routes one request through the state machine.
func (a *Adapter) Do(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "api.request",
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL),
	)
	defer span.End()

	sig := Signature(req.Method, req.URL, req.Body)
	isGet := req.Method == http.MethodGet

	online := a.service.Online()
	if online && !a.breaker.Allow() {
		a.logger.Debug("Live path short-circuited by open circuit breaker")
		online = false
	}

	if !online {
		if isGet {
			return a.serveFromCache(ctx, sig)
		}
		return a.enqueue(ctx, req, sig)
	}

	resp, err := a.sendLive(ctx, req)
	if err == nil {
		a.breaker.RecordSuccess()
		tracing.AddSpanAttributes(ctx, attribute.String("tutorlink.outcome", string(resp.Outcome)))
		if isGet && resp.Status >= 200 && resp.Status < 300 {
			if cacheErr := a.service.CacheResponse(ctx, req.Method, sig, resp.Status, flattenHeader(resp.Header), resp.Body); cacheErr != nil {
				apperrors.LogError(a.logger, cacheErr, "Failed to cache GET response")
			}
		}
		return resp, nil
	}

	if !apperrors.IsNetworkClass(err) {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	// Network-class failure: the server was unreachable. Feed the
	// evidence to the breaker and monitor, then fall back.
	a.breaker.RecordFailure()
	a.service.ReportNetworkError()
	a.metrics.IncrementCounter("api.network_error", nil)

	if isGet {
		cached, cacheErr := a.serveFromCache(ctx, sig)
		if cacheErr != nil {
			// No cached copy: the original network error is the more
			// useful one for the caller.
			tracing.RecordError(ctx, err)
			return nil, err
		}
		return cached, nil
	}

	return a.enqueue(ctx, req, sig)
}

// sendLive performs the real HTTP exchange. Any status code from a
// reachable server comes back as a Response; only transport-level
// failures return an error.
func (a *Adapter) sendLive(ctx context.Context, req *Request) (*Response, error) {
	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to build request")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := a.transport.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err, req.URL)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkError(err, req.URL)
	}

	return &Response{
		Status:  httpResp.StatusCode,
		Header:  httpResp.Header,
		Body:    body,
		Outcome: OutcomeLive,
	}, nil
}

func (a *Adapter) serveFromCache(ctx context.Context, sig string) (*Response, error) {
	entry, err := a.service.CachedResponse(ctx, sig)
	if err != nil {
		return nil, apperrors.NewStorageError("cache lookup", err)
	}
	if entry == nil {
		a.metrics.IncrementCounter("api.no_offline_data", nil)
		return nil, apperrors.NewNoOfflineDataError(sig)
	}

	header := make(http.Header, len(entry.Headers)+1)
	for k, v := range entry.Headers {
		header.Set(k, v)
	}
	header.Set(constants.StaleHeader, "true")

	a.metrics.IncrementCounter("api.cache_serve", nil)
	return &Response{
		Status:  entry.StatusCode,
		Header:  header,
		Body:    entry.Body,
		Outcome: OutcomeCacheHit,
		Stale:   true,
	}, nil
}

// enqueue defers a mutation and fabricates a success so the UI can
// proceed optimistically. The Outcome discriminant tells callers the
// server has not confirmed anything yet.
func (a *Adapter) enqueue(ctx context.Context, req *Request, sig string) (*Response, error) {
	if _, err := a.service.QueueMutation(ctx, req.Method, sig, req.URL, req.Headers, req.Body); err != nil {
		return nil, apperrors.NewStorageError("queue mutation", err)
	}

	header := make(http.Header, 1)
	header.Set("Content-Type", "application/json")
	return &Response{
		Status:  http.StatusOK,
		Header:  header,
		Body:    queuedBody,
		Outcome: OutcomeQueued,
	}, nil
}

// classifyTransportError splits timeouts from other unreachable-server
// failures. Both are network-class; only the taxonomy differs.
func classifyTransportError(err error, endpoint string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError(err, endpoint)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewTimeoutError(err, endpoint)
	}
	return apperrors.NewNetworkError(err, endpoint)
}

func flattenHeader(h http.Header) map[string]string {
	flat := make(map[string]string, len(h))
	for k := range h {
		flat[k] = h.Get(k)
	}
	return flat
}
