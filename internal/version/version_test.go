package version

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weibokit/weibo/pkg/weibo"
)

func TestIsDev(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	tests := []struct {
		version  string
		expected bool
	}{
		{"dev", true},
		{"1.0.0", false},
		{"v1.2.3", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			Version = tt.version
			assert.Equal(t, tt.expected, IsDev())
		})
	}
}

func TestFull(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	Version = "dev"
	assert.Equal(t, "weibo version dev (built from source)", Full())

	Version = "1.2.3"
	assert.Equal(t, "weibo version 1.2.3", Full())
}

func TestUserAgent(t *testing.T) {
	original := Version
	defer func() { Version = original }()

	Version = "1.0.0"
	assert.Equal(t, "weibo-cli/1.0.0 "+weibo.DefaultUserAgent, UserAgent())
}
