package auth

import (
	"context"
	"fmt"
	"time"

	"tutorlink/internal/constants"
	"tutorlink/internal/models"
	"tutorlink/internal/store"

	"github.com/golang-jwt/jwt/v5"
)

// TokenStore persists the bearer token pair across process restarts.
// It owns the access/refresh keys exclusively: written on login and
// refresh, cleared on logout or irrecoverable refresh failure.
type TokenStore struct {
	store *store.Store
}

func NewTokenStore(s *store.Store) *TokenStore {
	return &TokenStore{store: s}
}

func (t *TokenStore) Tokens(ctx context.Context) (models.TokenPair, error) {
	access, err := t.store.GetValue(ctx, constants.AccessTokenKey)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to read access token: %w", err)
	}
	refresh, err := t.store.GetValue(ctx, constants.RefreshTokenKey)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to read refresh token: %w", err)
	}
	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

func (t *TokenStore) SaveTokens(ctx context.Context, pair models.TokenPair) error {
	if err := t.store.SetValue(ctx, constants.AccessTokenKey, pair.Access); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if pair.Refresh != "" {
		if err := t.store.SetValue(ctx, constants.RefreshTokenKey, pair.Refresh); err != nil {
			return fmt.Errorf("failed to store refresh token: %w", err)
		}
	}
	return nil
}

// SaveAccessToken replaces only the access token, keeping the refresh
// token in place. Used after a refresh exchange.
func (t *TokenStore) SaveAccessToken(ctx context.Context, access string) error {
	if err := t.store.SetValue(ctx, constants.AccessTokenKey, access); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	return nil
}

// SaveUserProfile stores the raw user object returned at login so the
// profile screen works offline.
func (t *TokenStore) SaveUserProfile(ctx context.Context, profile []byte) error {
	if err := t.store.SetValue(ctx, constants.UserProfileKey, string(profile)); err != nil {
		return fmt.Errorf("failed to store user profile: %w", err)
	}
	return nil
}

// UserProfile returns the stored user object, or nil when absent.
func (t *TokenStore) UserProfile(ctx context.Context) ([]byte, error) {
	raw, err := t.store.GetValue(ctx, constants.UserProfileKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read user profile: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	return []byte(raw), nil
}

// ClearSession removes tokens and locally cached user data.
func (t *TokenStore) ClearSession(ctx context.Context) error {
	for _, key := range []string{constants.AccessTokenKey, constants.RefreshTokenKey, constants.UserProfileKey} {
		if err := t.store.DeleteValue(ctx, key); err != nil {
			return fmt.Errorf("failed to clear session key %q: %w", key, err)
		}
	}
	return nil
}

// AccessTokenExpired reports whether a JWT access token is expired or
// expires within the leeway window. The client holds no signing key, so
// claims are read without signature verification; the server remains
// the authority and will still answer 401 for a token it rejects.
// Tokens that cannot be parsed are treated as expired.
func AccessTokenExpired(tokenString string, leeway time.Duration) bool {
	if tokenString == "" {
		return true
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		// No expiry claim: assume the server will decide
		return false
	}

	return time.Now().Add(leeway).After(exp.Time)
}
