package sandbox

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// randHex returns size random bytes hex encoded.
func randHex(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// newID returns a resource id in the remote API's prefix_uuid form.
func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
