package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignature_Deterministic(t *testing.T) {
	a := Signature(http.MethodGet, "https://api.example.com/bookings?page=1", nil)
	b := Signature(http.MethodGet, "https://api.example.com/bookings?page=1", nil)
	assert.Equal(t, a, b)
}

func TestSignature_QueryOrderIrrelevant(t *testing.T) {
	a := Signature(http.MethodGet, "https://api.example.com/bookings?page=1&size=20", nil)
	b := Signature(http.MethodGet, "https://api.example.com/bookings?size=20&page=1", nil)
	assert.Equal(t, a, b)
}

func TestSignature_MethodMatters(t *testing.T) {
	a := Signature(http.MethodGet, "https://api.example.com/bookings", nil)
	b := Signature(http.MethodDelete, "https://api.example.com/bookings", nil)
	assert.NotEqual(t, a, b)
}

func TestSignature_MutationBodyMatters(t *testing.T) {
	a := Signature(http.MethodPost, "https://api.example.com/bookings", []byte(`{"slot":"mon"}`))
	b := Signature(http.MethodPost, "https://api.example.com/bookings", []byte(`{"slot":"tue"}`))
	assert.NotEqual(t, a, b)
}

func TestSignature_GetIgnoresBody(t *testing.T) {
	a := Signature(http.MethodGet, "https://api.example.com/bookings", []byte("x"))
	b := Signature(http.MethodGet, "https://api.example.com/bookings", nil)
	assert.Equal(t, a, b)
}

func TestSignature_FragmentStripped(t *testing.T) {
	a := Signature(http.MethodGet, "https://api.example.com/bookings#top", nil)
	b := Signature(http.MethodGet, "https://api.example.com/bookings", nil)
	assert.Equal(t, a, b)
}

func TestSignature_LowercaseMethodNormalized(t *testing.T) {
	a := Signature("post", "https://api.example.com/bookings", []byte("{}"))
	b := Signature(http.MethodPost, "https://api.example.com/bookings", []byte("{}"))
	assert.Equal(t, a, b)
}
