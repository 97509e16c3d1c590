package adapter

import (
	"crypto/sha1"
	"encoding/hex"
)

// deterministicSuffix hashes its parts into a stable, content-derived
// suffix so re-ingesting the same payload resolves to the same node IDs
// (section 8, invariant 1: re-ingest yields no duplicate nodes).
func deterministicSuffix(parts ...string) string {
	h := sha1.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
