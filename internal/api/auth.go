package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	apperrors "tutorlink/internal/errors"
	"tutorlink/internal/models"
	"tutorlink/internal/privacy"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	User         json.RawMessage `json:"user"`
}

// Login exchanges credentials for a token pair and persists the
// session. It always goes over the bare transport: there is nothing to
// cache or queue about a login, and a stored stale token must not ride
// along.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body, err := c.postBare(ctx, c.config.LoginPath, loginRequest{Email: email, Password: password}, "")
	if err != nil {
		return err
	}

	var issued tokenResponse
	if err := json.Unmarshal(body, &issued); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeAuthentication, "malformed login response")
	}
	if issued.AccessToken == "" {
		return apperrors.New(apperrors.ErrCodeAuthentication, "login response missing access token")
	}

	if err := c.tokens.SaveTokens(ctx, models.TokenPair{Access: issued.AccessToken, Refresh: issued.RefreshToken}); err != nil {
		return apperrors.NewStorageError("token write", err)
	}
	if len(issued.User) > 0 {
		if err := c.tokens.SaveUserProfile(ctx, issued.User); err != nil {
			apperrors.LogError(c.logger, err, "Failed to persist user profile")
		}
	}

	c.metrics.IncrementCounter("auth.login_success", nil)
	c.logger.WithField("email", privacy.MaskEmail(email)).Info("Login successful")
	return nil
}

// Logout tells the server to revoke the session, then clears local
// session data regardless of the server's answer. An unreachable
// server must never keep a user logged in.
func (c *Client) Logout(ctx context.Context) error {
	pair, err := c.tokens.Tokens(ctx)
	if err != nil {
		return apperrors.NewStorageError("token read", err)
	}

	if pair.HasAccess() && c.service.Online() {
		if _, err := c.postBare(ctx, c.config.LogoutPath, struct{}{}, pair.Access); err != nil {
			apperrors.LogError(c.logger, err, "Server-side logout failed, clearing local session anyway")
		}
	}

	if err := c.tokens.ClearSession(ctx); err != nil {
		return apperrors.NewStorageError("session clear", err)
	}
	c.metrics.IncrementCounter("auth.logout", nil)
	return nil
}

// postBare posts JSON over the bare transport, bypassing the adapter
// and all interception. Returns the response body on 2xx; non-2xx maps
// to an API error and transport failures to network-class errors.
func (c *Client) postBare(ctx context.Context, path string, payload interface{}, bearer string) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidationFailed, "failed to marshal request body")
	}

	url := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	httpResp, err := c.bare.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err, url)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkError(err, url)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, apperrors.NewAPIError(path, httpResp.StatusCode, body)
	}
	return body, nil
}
