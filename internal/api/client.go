package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"tutorlink/internal/auth"
	apperrors "tutorlink/internal/errors"
	"tutorlink/internal/metrics"
	"tutorlink/internal/models"
	"tutorlink/internal/offline"
	"tutorlink/internal/privacy"

	"github.com/sirupsen/logrus"
)

// tokenExpiryLeeway refreshes proactively when the access token is
// about to expire, saving the 401 round trip.
const tokenExpiryLeeway = 30 * time.Second

// Client is the HTTP facade application code talks to. It attaches
// bearer tokens, routes requests through the offline-aware adapter,
// and performs the single-flight 401 refresh-and-retry cycle.
type Client struct {
	baseURL string
	config  models.APIConfig
	adapter *Adapter
	tokens  *auth.TokenStore
	service *offline.Service
	// bare transport for the refresh/login exchanges; using the main
	// adapter there would recurse into interception.
	bare    *http.Client
	logger  *logrus.Logger
	metrics *metrics.Registry

	// onSessionExpired runs after local session data is cleared; the
	// embedding app uses it to navigate to the login entry point.
	onSessionExpired func()

	refreshMu sync.Mutex
	inFlight  *refreshAttempt
}

// refreshAttempt is shared by all callers that hit a 401 while one
// refresh exchange is already running, so concurrent 401s never start
// concurrent refreshes.
type refreshAttempt struct {
	done chan struct{}
	err  error
}

type Option func(*Client)

// WithSessionExpiredHook installs the navigation callback fired after
// an irrecoverable auth failure clears the session.
func WithSessionExpiredHook(fn func()) Option {
	return func(c *Client) { c.onSessionExpired = fn }
}

func NewClient(cfg models.APIConfig, adapter *Adapter, tokens *auth.TokenStore, service *offline.Service, logger *logrus.Logger, registry *metrics.Registry, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		config:  cfg,
		adapter: adapter,
		tokens:  tokens,
		service: service,
		bare: &http.Client{
			Timeout: time.Duration(cfg.RefreshTimeoutSec) * time.Second,
		},
		logger:  logger,
		metrics: registry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	req, err := c.buildRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.adapter.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	// 401 on a live response triggers exactly one refresh-and-retry.
	// Synthetic offline results never do: their 401s do not exist, and
	// a refresh attempt without a network would only destroy state.
	if resp.Outcome == OutcomeLive && resp.Status == http.StatusUnauthorized && c.service.Online() {
		if refreshErr := c.refreshAccessToken(ctx); refreshErr != nil {
			return nil, refreshErr
		}
		if err := c.attachAuth(ctx, req); err != nil {
			return nil, err
		}
		resp, err = c.adapter.Do(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	if resp.Outcome == OutcomeLive && resp.Status >= 400 {
		return nil, apperrors.NewAPIError(path, resp.Status, resp.Body)
	}

	return resp, nil
}

func (c *Client) buildRequest(ctx context.Context, method, path string, body interface{}) (*Request, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeValidationFailed, "failed to marshal request body")
		}
	}

	req := &Request{
		Method: method,
		URL:    c.baseURL + path,
		Headers: map[string]string{
			"Accept": "application/json",
		},
		Body: payload,
	}
	if len(payload) > 0 {
		req.Headers["Content-Type"] = "application/json"
	}

	if err := c.attachAuth(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// attachAuth sets the bearer header when a token is present; requests
// without a token proceed unauthenticated. An access token near expiry
// is refreshed proactively while online.
func (c *Client) attachAuth(ctx context.Context, req *Request) error {
	pair, err := c.tokens.Tokens(ctx)
	if err != nil {
		return apperrors.NewStorageError("token read", err)
	}
	if !pair.HasAccess() {
		delete(req.Headers, "Authorization")
		return nil
	}

	if pair.HasRefresh() && c.service.Online() && auth.AccessTokenExpired(pair.Access, tokenExpiryLeeway) {
		if refreshErr := c.refreshAccessToken(ctx); refreshErr != nil {
			if apperrors.Is(refreshErr, apperrors.ErrCodeSessionExpired) {
				return refreshErr
			}
			// Transient refresh trouble: fall through with the old
			// token and let the server arbitrate.
			apperrors.LogRetryableError(c.logger, refreshErr, "Proactive token refresh failed")
		} else if pair, err = c.tokens.Tokens(ctx); err != nil {
			return apperrors.NewStorageError("token read", err)
		}
	}

	req.Headers["Authorization"] = "Bearer " + pair.Access
	return nil
}

// refreshAccessToken serializes refresh exchanges: the first caller
// performs the exchange, concurrent callers wait on the same attempt
// and share its verdict.
func (c *Client) refreshAccessToken(ctx context.Context) error {
	c.refreshMu.Lock()
	if attempt := c.inFlight; attempt != nil {
		c.refreshMu.Unlock()
		select {
		case <-attempt.done:
			return attempt.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	attempt := &refreshAttempt{done: make(chan struct{})}
	c.inFlight = attempt
	c.refreshMu.Unlock()

	attempt.err = c.exchangeRefreshToken()
	close(attempt.done)

	c.refreshMu.Lock()
	c.inFlight = nil
	c.refreshMu.Unlock()

	return attempt.err
}

// exchangeRefreshToken swaps the refresh token for a new access token
// over the bare transport. It deliberately runs on its own deadline,
// detached from any single caller's context, because its result is
// shared by every in-flight request.
func (c *Client) exchangeRefreshToken() error {
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(c.config.RefreshTimeoutSec)*time.Second)
	defer cancel()

	c.metrics.IncrementCounter("auth.refresh_attempt", nil)

	pair, err := c.tokens.Tokens(ctx)
	if err != nil {
		return apperrors.NewStorageError("token read", err)
	}
	if !pair.HasRefresh() {
		c.expireSession(ctx)
		return apperrors.NewSessionExpiredError(nil)
	}

	resp, err := c.postBare(ctx, c.config.RefreshPath, refreshRequest{RefreshToken: pair.Refresh}, "")
	if err != nil {
		if apperrors.IsNetworkClass(err) {
			// The network died mid-flight; keep the session so the
			// user is not logged out by a dead link.
			return err
		}
		c.expireSession(ctx)
		return apperrors.NewSessionExpiredError(err)
	}

	var issued tokenResponse
	if err := json.Unmarshal(resp, &issued); err != nil {
		c.expireSession(ctx)
		return apperrors.NewSessionExpiredError(fmt.Errorf("malformed refresh response: %w", err))
	}

	if issued.RefreshToken != "" {
		err = c.tokens.SaveTokens(ctx, models.TokenPair{Access: issued.AccessToken, Refresh: issued.RefreshToken})
	} else {
		err = c.tokens.SaveAccessToken(ctx, issued.AccessToken)
	}
	if err != nil {
		return apperrors.NewStorageError("token write", err)
	}

	c.metrics.IncrementCounter("auth.refresh_success", nil)
	c.logger.WithField("access_token", privacy.MaskToken(issued.AccessToken)).Debug("Access token refreshed")
	return nil
}

// expireSession clears local session data and notifies the app.
func (c *Client) expireSession(ctx context.Context) {
	if err := c.tokens.ClearSession(ctx); err != nil {
		apperrors.LogError(c.logger, err, "Failed to clear session data")
	}
	c.metrics.IncrementCounter("auth.session_expired", nil)
	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
}

// ReplayMutation re-issues a queued mutation over the live path with
// current credentials. Used only by the offline replay worker; it must
// not re-enter the adapter's branching or the mutation could be queued
// a second time.
func (c *Client) ReplayMutation(ctx context.Context, m models.QueuedMutation) error {
	req := &Request{
		Method:  m.Method,
		URL:     m.URL,
		Headers: make(map[string]string, len(m.Headers)),
		Body:    m.Body,
	}
	for k, v := range m.Headers {
		req.Headers[k] = v
	}
	if err := c.attachAuth(ctx, req); err != nil {
		return err
	}

	resp, err := c.adapter.sendLive(ctx, req)
	if err != nil {
		return err
	}

	if resp.Status == http.StatusUnauthorized {
		if refreshErr := c.refreshAccessToken(ctx); refreshErr != nil {
			return refreshErr
		}
		if err := c.attachAuth(ctx, req); err != nil {
			return err
		}
		resp, err = c.adapter.sendLive(ctx, req)
		if err != nil {
			return err
		}
	}

	if resp.Status >= 400 {
		return apperrors.NewAPIError(m.URL, resp.Status, resp.Body)
	}
	return nil
}
