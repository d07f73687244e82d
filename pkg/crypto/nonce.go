// SPDX-License-Identifier: AGPL-3.0-or-later
package crypto

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateNonce creates a base64url-encoded 256-bit cryptographically secure random
// string, used as the salt in a mask's hash commitment.
func GenerateNonce() (string, error) {
	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(nonceBytes), nil
}
