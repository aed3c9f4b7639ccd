package models

// TokenPair holds the bearer credentials for the platform API.
// The access token is short-lived; the refresh token is exchanged
// for a new access token when the old one expires.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// HasAccess reports whether an access token is present.
func (t TokenPair) HasAccess() bool {
	return t.Access != ""
}

// HasRefresh reports whether a refresh token is present.
func (t TokenPair) HasRefresh() bool {
	return t.Refresh != ""
}
