// SPDX-License-Identifier: AGPL-3.0-or-later
package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/pkg/crypto"
)

func newRemoteMasker() *RemoteMaskerService {
	return NewRemoteMaskerService(NewResourceService(NewMaskService()))
}

func TestMaskRemoteResourceAsNewResourceRequiresArguments(t *testing.T) {
	svc := newRemoteMasker()

	_, err := svc.MaskRemoteResourceAsNewResource(context.Background(), MaskRemoteInput{})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = svc.MaskRemoteResourceAsNewResource(context.Background(), MaskRemoteInput{URL: "https://example.com/resources/1"})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestMaskRemoteResourceAsNewResourceGeneratesAndPersistsNonce(t *testing.T) {
	svc := newRemoteMasker()
	conn := newFakeConnection("https://example.com")
	conn.resources["https://example.com/resources/1"] = models.Resource{
		"_type":    "application/vnd.trellis.example+json",
		"location": models.Resource{"here": "here"},
	}

	id, err := svc.MaskRemoteResourceAsNewResource(context.Background(), MaskRemoteInput{
		URL:        "https://example.com/resources/1",
		Paths:      []string{"/location"},
		Connection: conn,
	})
	require.NoError(t, err)
	assert.Equal(t, "resources/generated", id)

	assert.Contains(t, conn.puts, "https://example.com/resources/1/_meta/nonce")
	require.Len(t, conn.posts, 1)

	posted, ok := conn.posts[0].(models.Resource)
	require.True(t, ok)
	paths := NewPathService().FindAllMaskPathsInResource(posted)
	assert.Equal(t, []string{"/location"}, paths)
}

func TestMaskRemoteResourceAsNewResourceReusesExistingNonce(t *testing.T) {
	svc := newRemoteMasker()
	conn := newFakeConnection("https://example.com")
	conn.resources["https://example.com/resources/1"] = models.Resource{
		"_type":    "application/json",
		"location": models.Resource{"here": "here"},
	}
	conn.resources["https://example.com/resources/1/_meta/nonce"] = "already-there"

	_, err := svc.MaskRemoteResourceAsNewResource(context.Background(), MaskRemoteInput{
		URL:        "https://example.com/resources/1",
		Paths:      []string{"/location"},
		Connection: conn,
	})
	require.NoError(t, err)

	// The write-once rule: an existing nonce must never be overwritten.
	assert.NotContains(t, conn.puts, "https://example.com/resources/1/_meta/nonce")
}

func TestMaskAndSignRemoteResourceAsNewResourceSignsBeforePersisting(t *testing.T) {
	svc := newRemoteMasker()
	conn := newFakeConnection("https://example.com")
	conn.resources["https://example.com/resources/1"] = models.Resource{
		"_type":    "application/json",
		"location": models.Resource{"here": "here"},
	}

	signer, err := crypto.NewEd25519Signer()
	require.NoError(t, err)
	signing := NewSigningService(signer)

	_, err = svc.MaskAndSignRemoteResourceAsNewResource(context.Background(), MaskRemoteInput{
		URL:        "https://example.com/resources/1",
		Paths:      []string{"/location"},
		Connection: conn,
	}, signing, crypto.Header{})
	require.NoError(t, err)

	require.Len(t, conn.posts, 1)
	posted, ok := conn.posts[0].(models.Resource)
	require.True(t, ok)
	assert.Contains(t, posted, "signatures")
}
