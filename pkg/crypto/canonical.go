// SPDX-License-Identifier: AGPL-3.0-or-later
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/trellisfw/masklink/internal/domain/models"
)

// HashAlgorithm is the only digest algorithm this core emits.
const HashAlgorithm = "SHA256"

// HashJSON is the canonical hash function: `hashJSON(value) → {alg, hash}`. It is
// deterministic and key-order-independent: Go's encoding/json sorts
// map[string]interface{} keys alphabetically on Marshal, so two structurally equal
// values always hash identically regardless of how their source maps were built or
// iterated.
func HashJSON(value models.JSON) (models.HashInfo, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return models.HashInfo{}, err
	}

	sum := sha256.Sum256(data)
	return models.HashInfo{
		Alg:  HashAlgorithm,
		Hash: hex.EncodeToString(sum[:]),
	}, nil
}
