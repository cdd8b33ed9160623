package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactedAttr(t *testing.T) {
	prod := RedactedAttr("login", "cajero1", "production")
	assert.Equal(t, "[REDACTED]", prod.Value.String())

	dev := RedactedAttr("login", "cajero1", "development")
	assert.Equal(t, "cajero1", dev.Value.String())
}

func TestSanitizeQueryString(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"page=2&limit=50", false},
		{"password=hunter2", true},
		{"TOKEN=abc", true},
		{"search=secreto", true},
		{"email=cajero1%40prendaria.test", true},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeQueryString(tt.query), "query %q", tt.query)
	}
}
