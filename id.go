package grokcode

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ShortID generates an 8-character lowercase hex id, used for agent ids
// and background task ids.
func ShortID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Fall back to the first 8 hex chars of a UUID; rand.Read failing means
		// the system entropy source is broken.
		return uuid.NewString()[:8]
	}
	return hex.EncodeToString(b[:])
}

// NowUnix returns current time as Unix seconds.
func NowUnix() int64 {
	return time.Now().Unix()
}
