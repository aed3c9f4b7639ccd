package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Outcome is the explicit discriminant for how a response was
// produced, replacing ad hoc marker fields on the payload.
type Outcome string

const (
	// OutcomeLive is a response from the real server.
	OutcomeLive Outcome = "live"
	// OutcomeCacheHit is a response served from the offline cache.
	OutcomeCacheHit Outcome = "cache_hit"
	// OutcomeQueued is a synthetic success for a mutation deferred
	// for replay; the server has not seen the request yet.
	OutcomeQueued Outcome = "queued"
)

// Response is the normalized result handed back to application code.
type Response struct {
	Status  int
	Header  http.Header
	Body    []byte
	Outcome Outcome
	// Stale is set for cache hits: the data reflects the last
	// successful online response, not current server state.
	Stale bool
}

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v interface{}) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// queuedBody is returned as the payload of synthetic queued successes,
// kept for callers that inspect the body rather than the Outcome.
var queuedBody = []byte(`{"_offline_queued":true}`)
