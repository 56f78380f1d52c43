package fingerprint

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateDeterministic(t *testing.T) {
	info := DeviceInfo{
		UserAgent:           "Mozilla/5.0 (X11; Linux x86_64)",
		Platform:            "Linux",
		HardwareConcurrency: "\"Chromium\";v=\"124\"",
	}
	a := Generate(info)
	b := Generate(info)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestGenerateSensitivity(t *testing.T) {
	base := DeviceInfo{UserAgent: "ua", Platform: "Linux", HardwareConcurrency: "8"}
	variants := []DeviceInfo{
		{UserAgent: "ua2", Platform: "Linux", HardwareConcurrency: "8"},
		{UserAgent: "ua", Platform: "Windows", HardwareConcurrency: "8"},
		{UserAgent: "ua", Platform: "Linux", HardwareConcurrency: "4"},
	}
	id := Generate(base)
	for _, v := range variants {
		assert.NotEqual(t, id, Generate(v))
	}
}

func TestFromRequestFallbacks(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("User-Agent", "test-agent")

	info := FromRequest(req)
	assert.Equal(t, "test-agent", info.UserAgent)
	assert.Equal(t, "unknown", info.Platform)
	assert.Equal(t, "unknown", info.HardwareConcurrency)

	req.Header.Set("Sec-CH-UA-Platform", "Linux")
	req.Header.Set("Sec-CH-UA", "\"Chromium\";v=\"124\"")
	info = FromRequest(req)
	assert.Equal(t, "Linux", info.Platform)
	assert.Equal(t, "\"Chromium\";v=\"124\"", info.HardwareConcurrency)
}
