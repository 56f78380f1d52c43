package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the hex digest of s. Used for refresh-token storage so
// raw tokens never land in the database.
func SHA256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
