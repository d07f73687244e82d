// SPDX-License-Identifier: AGPL-3.0-or-later
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/pkg/crypto"
)

func TestSignResourceAppendsSignatureWithoutMutatingInput(t *testing.T) {
	signer, err := crypto.NewEd25519Signer()
	require.NoError(t, err)

	svc := NewSigningService(signer)
	resource := models.Resource{"location": "masked-already"}

	signed, err := svc.SignResource(SignInput{Resource: resource, Paths: []string{"/location"}})
	require.NoError(t, err)

	assert.NotContains(t, resource, "signatures")
	assert.Contains(t, signed, "signatures")

	verification, err := signer.Verify(signed)
	require.NoError(t, err)
	assert.True(t, verification.Valid)
	assert.Equal(t, []string{"/location"}, verification.Payload.MaskPaths)
}

func TestSignResourceDefaultsToMaskType(t *testing.T) {
	signer, err := crypto.NewEd25519Signer()
	require.NoError(t, err)

	svc := NewSigningService(signer)
	signed, err := svc.SignResource(SignInput{Resource: models.Resource{"a": 1}})
	require.NoError(t, err)

	verification, err := signer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, models.SignatureTypeMask, verification.Payload.Type)
}
