package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
)

// DeviceInfo is the coarse request metadata a device identity is derived
// from. There is no session secret and no IP binding: two requests with
// identical header triples are the same device, and genuinely different
// devices with coinciding headers will collide. That false-negative risk
// is accepted and documented, not something to silently patch around.
type DeviceInfo struct {
	UserAgent           string `json:"userAgent"`
	Platform            string `json:"platform"`
	HardwareConcurrency string `json:"hardwareConcurrency"`
}

// FromRequest extracts device metadata from the request headers, with the
// same fallbacks the browser client uses.
func FromRequest(r *http.Request) DeviceInfo {
	platform := r.Header.Get("Sec-CH-UA-Platform")
	if platform == "" {
		platform = "unknown"
	}
	hint := r.Header.Get("Sec-CH-UA")
	if hint == "" {
		hint = "unknown"
	}
	return DeviceInfo{
		UserAgent:           r.Header.Get("User-Agent"),
		Platform:            platform,
		HardwareConcurrency: hint,
	}
}

// Generate derives the deterministic device identifier: the first 32 hex
// characters of SHA-256("ua-platform-hint").
func Generate(info DeviceInfo) string {
	s := fmt.Sprintf("%s-%s-%s", info.UserAgent, info.Platform, info.HardwareConcurrency)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:32]
}
