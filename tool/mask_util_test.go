package tool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "***", MaskToken(""))
	assert.Equal(t, "***", MaskToken("short"))
	assert.Equal(t, "tok-123456...", MaskToken("tok-1234567890"))
}

func TestMaskIdentity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice@example.com", "a***e@example.com"},
		{"ab@example.com", "**@example.com"},
		{"nobody", "n****y"},
		{"x", "*"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskIdentity(tt.in), tt.in)
	}
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseDuration("", 5*time.Second))
	assert.Equal(t, 5*time.Second, ParseDuration("nonsense", 5*time.Second))
	assert.Equal(t, 5*time.Second, ParseDuration("-1s", 5*time.Second))
	assert.Equal(t, 250*time.Millisecond, ParseDuration("250ms", 5*time.Second))
}
