package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, Version, info.Version)
	assert.Contains(t, info.Platform, "/")
	assert.True(t, strings.HasPrefix(info.String(), "Version:\t"+Version))
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "presence/"+Version, UserAgent())
}
