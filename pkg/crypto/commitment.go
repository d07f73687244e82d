// SPDX-License-Identifier: AGPL-3.0-or-later
package crypto

import (
	"github.com/trellisfw/masklink/internal/domain/models"
)

// Commit computes the hash commitment for a mask: hashJSON({"original": original,
// "nonce": nonce}). This two-key wrapper, with the keys literally "original" and
// "nonce", is the canonical form this core uses; a legacy variant that mutated a
// clone of original with an injected "_nonce" field is never implemented here — see
// DESIGN.md's note on this decision.
func Commit(original models.JSON, nonce string) (models.HashInfo, error) {
	return HashJSON(models.Resource{
		"original": original,
		"nonce":    nonce,
	})
}
