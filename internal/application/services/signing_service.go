// SPDX-License-Identifier: AGPL-3.0-or-later
package services

import (
	"sort"

	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/pkg/crypto"
)

// Signer is the external signing collaborator: appends or consumes the top-most
// signature on a document. pkg/crypto.Ed25519Signer is this module's own stand-in
// implementation.
type Signer interface {
	Sign(doc models.Resource, opts crypto.SignOptions) (models.Resource, error)
	Verify(doc models.Resource) (models.SignatureVerification, error)
}

// SignInput is the argument bundle for SigningService.SignResource.
type SignInput struct {
	Resource models.Resource
	Header   crypto.Header
	Type     string   // defaults to models.SignatureTypeMask when empty
	Paths    []string // becomes payload["mask-paths"] when non-empty
}

// SigningService is a thin adapter from the core's own vocabulary (resource, paths)
// to the external signer's contract (doc, opts).
type SigningService struct {
	signer Signer
}

// NewSigningService constructs a SigningService around a Signer collaborator.
func NewSigningService(signer Signer) *SigningService {
	return &SigningService{signer: signer}
}

// SignResource appends a new signature to a copy of in.Resource. The signer derives
// header.jwk/kid from its own key when the caller's header leaves them empty.
func (s *SigningService) SignResource(in SignInput) (models.Resource, error) {
	sigType := in.Type
	if sigType == "" {
		sigType = models.SignatureTypeMask
	}

	payload := models.SignaturePayload{Type: sigType}
	if len(in.Paths) > 0 {
		// Canonical (sorted) order so this round's declared mask-paths line up with
		// the signer's own canonical enumeration of what it actually masked.
		paths := append([]string(nil), in.Paths...)
		sort.Strings(paths)
		payload.MaskPaths = paths
	}

	return s.signer.Sign(in.Resource, crypto.SignOptions{
		Header:  in.Header,
		Type:    sigType,
		Payload: payload,
	})
}
