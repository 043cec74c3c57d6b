package checksum

import (
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// CalculateChecksum fingerprints an in-memory payload, such as an upload.
func CalculateChecksum(payload []byte) string {
	digest := xxhash.New()
	digest.Write(payload)

	return hex.EncodeToString(digest.Sum(nil))
}
