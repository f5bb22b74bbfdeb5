package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a 32-char hex identifier tagged with a short prefix,
// "cmp_9f2...", so ids are self-describing in logs and stored documents.
// An empty prefix yields the bare hex string, used for token secrets.
func NewID(prefix string) string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	id := hex.EncodeToString(buf[:])
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
