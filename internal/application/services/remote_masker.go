// SPDX-License-Identifier: AGPL-3.0-or-later
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/internal/infrastructure/transport"
	"github.com/trellisfw/masklink/pkg/crypto"
	"github.com/trellisfw/masklink/pkg/logger"
)

// SignatureCallback optionally signs the locally-masked resource before it is
// persisted. It receives the masked resource and returns the resource to actually
// POST — typically the signer's output, but a callback may also return its input
// unchanged.
type SignatureCallback func(ctx context.Context, masked models.Resource) (models.Resource, error)

// MaskRemoteInput is the argument bundle for
// RemoteMaskerService.MaskRemoteResourceAsNewResource.
type MaskRemoteInput struct {
	URL               string
	Paths             []string
	Token             string
	Domain            string
	Connection        transport.Connection
	TimeoutMs         int
	MaxRedirects      int
	AllowedDomains    []string
	SignatureCallback SignatureCallback
}

// RemoteMaskerService fetches an original, establishes its nonce, masks it locally,
// optionally signs it, and persists the result as a new resource.
type RemoteMaskerService struct {
	resource *ResourceService
}

// NewRemoteMaskerService constructs a RemoteMaskerService on top of a ResourceService.
func NewRemoteMaskerService(resource *ResourceService) *RemoteMaskerService {
	return &RemoteMaskerService{resource: resource}
}

// MaskRemoteResourceAsNewResource runs the full fetch/mask/sign/persist protocol and
// returns the new resource's id (the content-location response header, leading "/"
// stripped).
func (s *RemoteMaskerService) MaskRemoteResourceAsNewResource(ctx context.Context, in MaskRemoteInput) (string, error) {
	if in.URL == "" || len(in.Paths) == 0 {
		return "", models.ErrInvalidArgument
	}

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
		return "", err
	}

	// Step 2: GET the original resource.
	originalJSON, err := conn.Get(ctx, in.URL)
	if err != nil {
		logger.Logger.Warn("maskRemoteResourceAsNewResource: failed to fetch original", "url", in.URL, "error", err.Error())
		return "", fmt.Errorf("%w: %s", models.ErrOriginalFetchFailed, err.Error())
	}
	original, ok := originalJSON.(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("%w: original at %s is not a JSON object", models.ErrOriginalFetchFailed, in.URL)
	}
	originalResource := models.Resource(original)

	noncePath := in.URL + "/_meta/nonce"

	// Step 3: reuse an existing nonce, or mint and persist one. The remote nonce is
	// write-once: an existing value at noncePath is never overwritten here.
	nonce, nonceURL, err := s.resolveNonce(ctx, conn, noncePath, originalResource)
	if err != nil {
		return "", err
	}

	// Step 4: mask the resource locally, no I/O.
	maskResult, err := s.resource.MaskResource(MaskResourceInput{
		Resource:      originalResource,
		URLToResource: in.URL,
		Paths:         in.Paths,
		Nonce:         nonce,
		NonceURL:      nonceURL,
	})
	if err != nil {
		return "", err
	}

	toPersist := maskResult.Resource

	// Step 5: optionally sign.
	if in.SignatureCallback != nil {
		signed, err := in.SignatureCallback(ctx, toPersist)
		if err != nil {
			return "", fmt.Errorf("signature callback failed: %w", err)
		}
		toPersist = signed
	}

	// Step 6: POST the resulting resource to /resources on the target domain.
	headers, err := conn.Post(ctx, "/resources", toPersist, map[string]string{
		"Content-Type": contentType(originalResource),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s", models.ErrCopyPersistFailed, err.Error())
	}

	newID := strings.TrimPrefix(headers.Get("Content-Location"), "/")
	if newID == "" {
		return "", fmt.Errorf("%w: response carried no content-location", models.ErrCopyPersistFailed)
	}

	return newID, nil
}

// MaskAndSignRemoteResourceAsNewResource composes components F and H: it runs the
// same protocol as MaskRemoteResourceAsNewResource, but wires a SignatureCallback
// that signs the locally-masked resource through signing before it is persisted.
func (s *RemoteMaskerService) MaskAndSignRemoteResourceAsNewResource(ctx context.Context, in MaskRemoteInput, signing *SigningService, header crypto.Header) (string, error) {
	in.SignatureCallback = func(_ context.Context, masked models.Resource) (models.Resource, error) {
		return signing.SignResource(SignInput{
			Resource: masked,
			Header:   header,
			Type:     models.SignatureTypeMask,
			Paths:    in.Paths,
		})
	}
	return s.MaskRemoteResourceAsNewResource(ctx, in)
}

func (s *RemoteMaskerService) resolveNonce(ctx context.Context, conn transport.Connection, noncePath string, original models.Resource) (nonce, nonceURL string, err error) {
	existing, err := conn.Get(ctx, noncePath)
	if err == nil {
		if nonceStr, ok := existing.(string); ok && nonceStr != "" {
			return nonceStr, noncePath, nil
		}
	}

	generated, err := crypto.GenerateNonce()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	if _, err := conn.Put(ctx, noncePath, generated, map[string]string{
		"Content-Type": contentType(original),
	}); err != nil {
		return "", "", fmt.Errorf("%w: %s", models.ErrNoncePersistFailed, err.Error())
	}

	return generated, noncePath, nil
}

func contentType(resource models.Resource) string {
	if t, ok := resource["_type"].(string); ok && t != "" {
		return t
	}
	return "application/json"
}
