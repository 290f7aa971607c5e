package storage

import (
	"encoding/hex"
	"encoding/json"

	"github.com/cespare/xxhash/v2"
)

// Checksum fingerprints a JSON-encodable snapshot. Ledger writes carry it so
// peers can detect a projection that drifted from what was submitted.
func Checksum(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	digest := xxhash.New()
	digest.Write(payload)
	return hex.EncodeToString(digest.Sum(nil)), nil
}
