// SPDX-License-Identifier: AGPL-3.0-or-later
package services

import (
	"context"
	"fmt"

	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/internal/infrastructure/transport"
	"github.com/trellisfw/masklink/pkg/i18n"
)

// VerifyChainInput is the argument bundle for VerifyChainService.VerifyRemoteResource.
type VerifyChainInput struct {
	URL            string
	Token          string
	Domain         string
	Connection     transport.Connection
	TimeoutMs      int
	MaxRedirects   int
	AllowedDomains []string

	// AcceptLanguage selects the locale for the summary line appended to the
	// verdict's Details; empty defaults to English.
	AcceptLanguage string
}

// VerifyChainService implements the recursive signature-chain peel, composing the
// four independent verdict booleans across rounds.
type VerifyChainService struct {
	signer   Signer
	resource *ResourceService
	path     *PathService
}

// NewVerifyChainService constructs a VerifyChainService from the external signer
// collaborator and the two services it calls back into.
func NewVerifyChainService(signer Signer, resource *ResourceService, path *PathService) *VerifyChainService {
	return &VerifyChainService{signer: signer, resource: resource, path: path}
}

// VerifyRemoteResource fetches the document at in.URL, peels every
// signature off it, and performs a final reconstruction pass over any masks left
// unreferenced by the signature chain.
func (s *VerifyChainService) VerifyRemoteResource(ctx context.Context, in VerifyChainInput) (models.ChainVerdict, error) {
	domain := in.Domain
	if domain == "" {
		if parsed, ok := models.DomainFromURL(in.URL); ok {
			domain = parsed
		}
	}

	conn, err := transport.Resolve(transport.ResolveOptions{
		Connection:     in.Connection,
		Token:          in.Token,
		Domain:         domain,
		TimeoutMs:      in.TimeoutMs,
		MaxRedirects:   in.MaxRedirects,
		AllowedDomains: in.AllowedDomains,
	})
	if err != nil {
		return models.ChainVerdict{}, err
	}

	docJSON, err := conn.Get(ctx, in.URL)
	if err != nil {
		return models.ChainVerdict{}, fmt.Errorf("%w: %s", models.ErrOriginalFetchFailed, err.Error())
	}
	doc, ok := docJSON.(map[string]interface{})
	if !ok {
		return models.ChainVerdict{}, fmt.Errorf("%w: resource at %s is not a JSON object", models.ErrOriginalFetchFailed, in.URL)
	}

	verdict, err := s.peel(ctx, models.Resource(doc), conn, in.TimeoutMs)
	if err != nil {
		return models.ChainVerdict{}, err
	}

	// Final pass: any mask descriptor left in the fully-peeled original that no
	// signature's mask-paths referenced is still reconstructed and folded in.
	remaining := s.path.FindAllMaskPathsInResource(verdict.Original)
	if len(remaining) > 0 {
		rc := s.resource.ReconstructOriginalFromMaskPaths(ctx, ReconstructInput{
			MaskedResource: verdict.Original,
			Paths:          remaining,
			Connection:     conn,
			TimeoutMs:      in.TimeoutMs,
		})
		verdict.Valid = verdict.Valid && rc.Valid
		verdict.Match = verdict.Match && rc.Match
		verdict.Original = rc.Resource
		verdict.Details = append(verdict.Details, rc.Details...)
	}

	locale := i18n.MatchLocale(in.AcceptLanguage)
	verdict.Details = append(verdict.Details, i18n.SummarizeVerdict(locale, verdict.Trusted, verdict.Valid, verdict.Unchanged, verdict.Match))

	return verdict, nil
}

// peel is the recursive verification state machine. It consumes the top-most
// signature on doc (if any), reconstructs what it attested to, and recurses into
// what remains.
func (s *VerifyChainService) peel(ctx context.Context, doc models.Resource, conn transport.Connection, timeoutMs int) (models.ChainVerdict, error) {
	sigs, _ := doc["signatures"].([]interface{})
	if len(sigs) == 0 {
		// Nothing was cryptographically attested here: unchanged is vacuously false,
		// not coerced to true.
		return models.ChainVerdict{Trusted: false, Unchanged: false, Valid: true, Match: true, Original: doc}, nil
	}

	sig, err := s.signer.Verify(doc)
	if err != nil {
		return models.ChainVerdict{}, fmt.Errorf("failed to verify signature: %w", err)
	}

	if !sig.Valid {
		// An invalid signature is recovered into a verdict, not propagated as an
		// error; the chain stops descending here.
		return models.ChainVerdict{
			Trusted:   false,
			Unchanged: false,
			Valid:     false,
			Match:     false,
			Original:  sig.Original,
			Details:   sig.Details,
		}, nil
	}

	var rc models.ReconstructResult
	switch sig.Payload.Type {
	case models.SignatureTypeMask:
		rc = s.resource.ReconstructOriginalFromMaskPaths(ctx, ReconstructInput{
			MaskedResource: sig.Original,
			Paths:          sig.Payload.MaskPaths,
			Connection:     conn,
			TimeoutMs:      timeoutMs,
		})
	case models.SignatureTypeModification:
		return models.ChainVerdict{}, models.ErrModificationUnsupported
	default:
		// Any other signature type (e.g. a transcription attestation) is treated as
		// an identity reconstruction: nothing to resolve.
		rc = models.ReconstructResult{Valid: true, Match: true, Resource: sig.Original}
	}

	var next models.ChainVerdict
	if _, present := rc.Resource["signatures"]; present {
		next, err = s.peel(ctx, rc.Resource, conn, timeoutMs)
		if err != nil {
			return models.ChainVerdict{}, err
		}
	} else {
		// Neutral element for the AND-composition below: there is no further round
		// to detract from what this signature itself attested.
		next = models.ChainVerdict{Trusted: true, Unchanged: true, Valid: true, Match: true, Original: rc.Resource}
	}

	details := make([]string, 0, len(sig.Details)+len(rc.Details)+len(next.Details))
	details = append(details, sig.Details...)
	details = append(details, rc.Details...)
	details = append(details, next.Details...)

	return models.ChainVerdict{
		Trusted:   sig.Trusted && next.Trusted,
		Unchanged: sig.Unchanged && next.Unchanged,
		Valid:     sig.Valid && next.Valid && rc.Valid,
		Match:     next.Match && rc.Match,
		Original:  next.Original,
		Details:   details,
	}, nil
}
