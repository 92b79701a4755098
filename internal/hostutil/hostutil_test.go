package hostutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},

		// Full URLs passed through
		{"http://api.t.sina.com.cn", "http://api.t.sina.com.cn"},
		{"https://api.weibo.com", "https://api.weibo.com"},
		{"http://localhost:3000", "http://localhost:3000"},

		// Localhost variants → http
		{"localhost", "http://localhost"},
		{"localhost:3000", "http://localhost:3000"},
		{"127.0.0.1:8080", "http://127.0.0.1:8080"},
		{"[::1]:3000", "http://[::1]:3000"},
		{"mock.localhost:3000", "http://mock.localhost:3000"},

		// Non-localhost → https
		{"api.weibo.com", "https://api.weibo.com"},
		{"open.t.qq.com:8443", "https://open.t.qq.com:8443"},
		{"localhost.example.com", "https://localhost.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "", BaseURL(""))
	assert.Equal(t, "http://localhost:3000/", BaseURL("localhost:3000"))
	assert.Equal(t, "https://api.weibo.com/2/", BaseURL("https://api.weibo.com/2"))
	assert.Equal(t, "https://api.weibo.com/2/", BaseURL(" https://api.weibo.com/2/ "))
}

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"localhost", true},
		{"localhost:3000", true},
		{"app.localhost", true},
		{"foo.bar.localhost:8080", true},
		{"127.0.0.1", true},
		{"127.0.0.1:3000", true},
		{"[::1]", true},
		{"[::1]:3000", true},

		{"::1", false},
		{"api.weibo.com", false},
		{"localhost.example.com", false},
		{"127.0.0.2", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsLocalhost(tt.input))
		})
	}
}
