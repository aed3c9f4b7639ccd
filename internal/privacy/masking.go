package privacy

import (
	"strings"
)

// MaskToken masks a bearer token for logging, keeping only the last 4
// characters. Example: "eyJhbGciOi...8f2k" -> "****8f2k"
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return "****" + token[len(token)-4:]
}

// MaskEmail masks the local part of an email address.
// Example: "student@example.com" -> "s******@example.com"
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 {
		if len(email) <= 2 {
			return strings.Repeat("*", len(email))
		}
		return email[:1] + strings.Repeat("*", len(email)-1)
	}

	local, domain := email[:at], email[at:]
	if len(local) == 1 {
		return "*" + domain
	}
	return local[:1] + strings.Repeat("*", len(local)-1) + domain
}

// MaskUserID keeps enough of a user ID to correlate log lines without
// exposing the full identifier. Example: "usr_1f0c92ab" -> "usr_****92ab"
func MaskUserID(id string) string {
	if id == "" {
		return ""
	}
	if len(id) <= 4 {
		return strings.Repeat("*", len(id))
	}
	if i := strings.Index(id, "_"); i > 0 && len(id)-i-1 > 4 {
		return id[:i+1] + "****" + id[len(id)-4:]
	}
	return "****" + id[len(id)-4:]
}
