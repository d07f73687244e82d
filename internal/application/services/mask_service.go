// SPDX-License-Identifier: AGPL-3.0-or-later
package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/internal/infrastructure/transport"
	"github.com/trellisfw/masklink/pkg/crypto"
	"github.com/trellisfw/masklink/pkg/logger"
)

// MaskInput is the argument bundle for MaskService.Mask.
type MaskInput struct {
	Original models.JSON
	URL      string
	Nonce    string // optional: generated when empty
	NonceURL string
}

// VerifyInput is the argument bundle for MaskService.Verify.
type VerifyInput struct {
	Mask     models.JSON
	Original models.JSON
	Nonce    string
}

// VerifyRemoteInput is the argument bundle for MaskService.VerifyRemote.
type VerifyRemoteInput struct {
	Mask           models.JSON
	Token          string
	Domain         string
	Connection     transport.Connection
	TimeoutMs      int
	MaxRedirects   int
	AllowedDomains []string
}

// MaskService implements single-object mask, verify, and verifyRemote. It depends
// only on the canonical hash/commitment helpers and the transport adapter.
type MaskService struct{}

// NewMaskService constructs a MaskService. It carries no state: every call is pure or
// takes its I/O dependency (a Connection) as an explicit argument.
func NewMaskService() *MaskService {
	return &MaskService{}
}

// Mask produces a mask descriptor committing to in.Original, generating a nonce when
// none is supplied. It never mutates its input and performs no I/O.
func (s *MaskService) Mask(in MaskInput) (models.MaskResult, error) {
	if in.NonceURL == "" {
		return models.MaskResult{}, models.ErrMissingNonceURL
	}

	nonce := in.Nonce
	if nonce == "" {
		generated, err := crypto.GenerateNonce()
		if err != nil {
			return models.MaskResult{}, fmt.Errorf("failed to generate nonce: %w", err)
		}
		nonce = generated
	}

	hashInfo, err := crypto.Commit(in.Original, nonce)
	if err != nil {
		return models.MaskResult{}, fmt.Errorf("failed to compute commitment: %w", err)
	}

	descriptor := models.MaskDescriptor{
		Version:  models.MaskVersion,
		HashInfo: hashInfo,
		URL:      in.URL,
		NonceURL: in.NonceURL,
	}

	return models.MaskResult{
		Nonce:    nonce,
		NonceURL: in.NonceURL,
		Mask:     descriptor.ToJSON(),
	}, nil
}

// Verify checks a mask descriptor against a caller-supplied original and nonce. It
// performs no I/O: valid records whether the descriptor itself is well-formed, match
// records whether the recomputed commitment agrees with it.
func (s *MaskService) Verify(in VerifyInput) models.MaskVerification {
	descriptor, ok := models.AsDescriptor(in.Mask)
	if !ok {
		return models.MaskVerification{Valid: false, Match: false, Details: []string{models.ErrNotAMask.Error()}}
	}
	if descriptor.Version != models.MaskVersion {
		return models.MaskVerification{Valid: false, Match: false, Details: []string{fmt.Sprintf("unsupported mask version %q", descriptor.Version)}}
	}
	if in.Original == nil {
		return models.MaskVerification{Valid: false, Match: false, Details: []string{"original is required to verify a mask"}}
	}
	if in.Nonce == "" {
		return models.MaskVerification{Valid: false, Match: false, Details: []string{"nonce is required to verify a mask"}}
	}

	computed, err := crypto.Commit(in.Original, in.Nonce)
	if err != nil {
		return models.MaskVerification{Valid: false, Match: false, Details: []string{"failed to compute commitment: " + err.Error()}}
	}

	match := computed.Equal(descriptor.HashInfo)
	details := []string(nil)
	if !match {
		details = []string{"recomputed commitment does not match the mask's hashinfo"}
	}

	return models.MaskVerification{Valid: true, Match: match, Details: details}
}

// VerifyRemote fetches the original and the nonce named by a mask descriptor and
// delegates to Verify. The two fetches run concurrently; either failing
// short-circuits to a recovered {valid:false, match:false} verdict rather than
// propagating an error.
func (s *MaskService) VerifyRemote(ctx context.Context, in VerifyRemoteInput) (models.RemoteMaskVerification, error) {
	descriptor, ok := models.AsDescriptor(in.Mask)
	if !ok {
		return models.RemoteMaskVerification{Valid: false, Match: false, Details: []string{models.ErrNotAMask.Error()}}, nil
	}

	conn, err := transport.Resolve(transport.ResolveOptions{
		Connection:     in.Connection,
		Token:          in.Token,
		Domain:         in.Domain,
		TimeoutMs:      in.TimeoutMs,
		MaxRedirects:   in.MaxRedirects,
		AllowedDomains: in.AllowedDomains,
	})
	if err != nil {
		return models.RemoteMaskVerification{}, err
	}

	var (
		wg                    sync.WaitGroup
		original              models.JSON
		nonce                 string
		originalErr, nonceErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		original, originalErr = conn.Get(ctx, descriptor.URL)
	}()
	go func() {
		defer wg.Done()
		nonceVal, fetchErr := conn.Get(ctx, descriptor.NonceURL)
		if fetchErr != nil {
			nonceErr = fetchErr
			return
		}
		nonceStr, ok := nonceVal.(string)
		if !ok {
			nonceErr = fmt.Errorf("nonce at %s is not a JSON string", descriptor.NonceURL)
			return
		}
		nonce = nonceStr
	}()
	wg.Wait()

	if originalErr != nil {
		logger.Logger.Warn("verifyRemote: failed to fetch original", "url", descriptor.URL, "error", originalErr.Error())
		return models.RemoteMaskVerification{Valid: false, Match: false, Details: []string{"failed to fetch mask.url: " + originalErr.Error()}}, nil
	}
	if nonceErr != nil {
		logger.Logger.Warn("verifyRemote: failed to fetch nonce", "url", descriptor.NonceURL, "error", nonceErr.Error())
		wrapped := fmt.Errorf("%w: %s", models.ErrNonceFetchFailed, nonceErr.Error())
		return models.RemoteMaskVerification{Valid: false, Match: false, Details: []string{wrapped.Error()}}, nil
	}

	verification := s.Verify(VerifyInput{Mask: in.Mask, Original: original, Nonce: nonce})

	return models.RemoteMaskVerification{
		Valid:    verification.Valid,
		Match:    verification.Match,
		Original: original,
		Nonce:    nonce,
		Details:  verification.Details,
	}, nil
}
