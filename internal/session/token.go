package session

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cookie names and lifetime of the student session. Both cookies are
// httpOnly; the deviceId cookie is validated independently against the
// recomputed fingerprint.
const (
	SessionCookie = "examSession"
	DeviceCookie  = "deviceId"
	CookieMaxAge  = 24 * 60 * 60 // seconds
)

var errMalformedToken = errors.New("malformed session token")

// EncodeToken builds the composite student session token:
// base64("studentID:unixMillis:deviceID").
func EncodeToken(studentID, deviceID string, issuedAt time.Time) string {
	raw := fmt.Sprintf("%s:%d:%s", studentID, issuedAt.UnixMilli(), deviceID)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeToken splits a composite token back into its parts.
func DecodeToken(token string) (studentID, deviceID string, issuedAt time.Time, err error) {
	raw, decErr := base64.StdEncoding.DecodeString(token)
	if decErr != nil {
		err = errMalformedToken
		return
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		err = errMalformedToken
		return
	}
	millis, parseErr := strconv.ParseInt(parts[1], 10, 64)
	if parseErr != nil {
		err = errMalformedToken
		return
	}
	studentID = parts[0]
	deviceID = parts[2]
	issuedAt = time.UnixMilli(millis).UTC()
	return
}
