// Package idgen generates opaque, stable identifiers for store entities.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a random 16-byte hex-encoded id (32 chars), comfortably
// above the store's "12+ byte" requirement (§6.2).
func New() string {
	b := make([]byte, 16)
	// crypto/rand.Read on the package-level Reader never returns a short
	// read without an error; an error here means the OS entropy source is
	// broken, which no amount of retrying fixes.
	if _, err := rand.Read(b); err != nil {
		panic("idgen: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}
