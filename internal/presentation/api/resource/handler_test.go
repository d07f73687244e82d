// SPDX-License-Identifier: AGPL-3.0-or-later
package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellisfw/masklink/internal/application/services"
	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/pkg/config"
	"github.com/trellisfw/masklink/pkg/crypto"
)

// passthroughSigner is a minimal services.Signer stand-in that returns its input
// unchanged, so tests can exercise the signing wiring without a real key pair.
type passthroughSigner struct{}

func (passthroughSigner) Sign(doc models.Resource, opts crypto.SignOptions) (models.Resource, error) {
	return doc, nil
}

func (passthroughSigner) Verify(doc models.Resource) (models.SignatureVerification, error) {
	return models.SignatureVerification{Valid: true, Original: doc}, nil
}

type fakeResourceService struct {
	maskResult        models.ResourceMaskResult
	maskErr           error
	reconstructResult models.ReconstructResult
}

func (f *fakeResourceService) MaskResource(in services.MaskResourceInput) (models.ResourceMaskResult, error) {
	return f.maskResult, f.maskErr
}

func (f *fakeResourceService) ReconstructOriginalFromMaskPaths(ctx context.Context, in services.ReconstructInput) models.ReconstructResult {
	return f.reconstructResult
}

type fakeRemoteMasker struct {
	id           string
	err          error
	capturedIn   services.MaskRemoteInput
	gotSignature bool
}

func (f *fakeRemoteMasker) MaskRemoteResourceAsNewResource(ctx context.Context, in services.MaskRemoteInput) (string, error) {
	f.capturedIn = in
	if in.SignatureCallback != nil {
		if _, err := in.SignatureCallback(ctx, models.Resource{"x": "y"}); err == nil {
			f.gotSignature = true
		}
	}
	return f.id, f.err
}

type fakeChain struct {
	verdict models.ChainVerdict
	err     error
}

func (f *fakeChain) VerifyRemoteResource(ctx context.Context, in services.VerifyChainInput) (models.ChainVerdict, error) {
	return f.verdict, f.err
}

type fakeAudit struct {
	called bool
	url    string
}

func (f *fakeAudit) RecordAndAlert(ctx context.Context, url string, verdict models.ChainVerdict) {
	f.called = true
	f.url = url
}

func TestHandleMaskResourceWritesResult(t *testing.T) {
	t.Parallel()

	fake := &fakeResourceService{maskResult: models.ResourceMaskResult{Nonce: "n", NonceURL: "https://x/_meta/nonce", Resource: models.Resource{"a": "b"}}}
	h := NewHandler(fake, &fakeRemoteMasker{}, &fakeChain{}, nil, config.TransportConfig{})

	body, _ := json.Marshal(maskResourceRequest{Resource: models.Resource{"ssn": "123"}, URLToResource: "https://x/a", Paths: []string{"/ssn"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resource/mask", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleMaskResource(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleMaskRemoteWiresSignatureCallbackWhenConfigured(t *testing.T) {
	t.Parallel()

	remote := &fakeRemoteMasker{id: "new-id"}
	signer := services.NewSigningService(&passthroughSigner{})
	h := NewHandler(&fakeResourceService{}, remote, &fakeChain{}, nil, config.TransportConfig{}).
		WithSigning(signer, crypto.Header{})

	body, _ := json.Marshal(maskRemoteRequest{URL: "https://x/a", Paths: []string{"/ssn"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resource/mask-remote", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleMaskRemote(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, remote.gotSignature)
	assert.NotNil(t, remote.capturedIn.SignatureCallback)
}

func TestHandleVerifyRemoteResourceRecordsAudit(t *testing.T) {
	t.Parallel()

	audit := &fakeAudit{}
	chain := &fakeChain{verdict: models.ChainVerdict{Valid: true, Match: true, Unchanged: true, Trusted: false}}
	h := NewHandler(&fakeResourceService{}, &fakeRemoteMasker{}, chain, audit, config.TransportConfig{})

	body, _ := json.Marshal(verifyRemoteResourceRequest{URL: "https://x/a"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resource/verify-remote", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleVerifyRemoteResource(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, audit.called)
	assert.Equal(t, "https://x/a", audit.url)
}

func TestHandleVerifyRemoteResourcePropagatesModificationUnsupported(t *testing.T) {
	t.Parallel()

	chain := &fakeChain{err: models.ErrModificationUnsupported}
	h := NewHandler(&fakeResourceService{}, &fakeRemoteMasker{}, chain, nil, config.TransportConfig{})

	body, _ := json.Marshal(verifyRemoteResourceRequest{URL: "https://x/a"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resource/verify-remote", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleVerifyRemoteResource(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
