package api

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
)

// Signature derives the stable cache/queue key for a request: method
// plus the normalized URL, and for mutations the body as well, so
// distinct payloads to the same endpoint queue separately. The result
// must not change across app restarts.
func Signature(method, rawURL string, body []byte) string {
	method = strings.ToUpper(method)

	var sb strings.Builder
	sb.WriteString(method)
	sb.WriteByte(' ')
	sb.WriteString(normalizeURL(rawURL))

	if method != http.MethodGet && len(body) > 0 {
		sum := sha256.Sum256(body)
		sb.WriteByte(' ')
		sb.WriteString(hex.EncodeToString(sum[:]))
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// normalizeURL sorts query parameters so logically identical requests
// share a signature regardless of parameter order.
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	q := u.Query()
	u.RawQuery = q.Encode() // Encode sorts keys
	u.Fragment = ""
	return u.String()
}
