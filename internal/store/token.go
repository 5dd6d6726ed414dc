package store

import (
	"crypto/rand"
	"encoding/hex"
)

// NewSessionID random 16-hex-char id for log correlation.
func NewSessionID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
