package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "", MaskToken(""))
	assert.Equal(t, "***", MaskToken("abc"))
	assert.Equal(t, "****8f2k", MaskToken("eyJhbGciOiJIUzI1NiJ9.payload.8f2k"))
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"student@example.com", "s******@example.com"},
		{"a@example.com", "*@example.com"},
		{"noatsign", "n*******"},
		{"ab", "**"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskEmail(tt.in), tt.in)
	}
}

func TestMaskUserID(t *testing.T) {
	assert.Equal(t, "", MaskUserID(""))
	assert.Equal(t, "****", MaskUserID("1234"))
	assert.Equal(t, "usr_****92ab", MaskUserID("usr_1f0c92ab"))
	assert.Equal(t, "****6789", MaskUserID("123456789"))
}
