// SPDX-License-Identifier: AGPL-3.0-or-later
package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trellisfw/masklink/internal/domain/models"
)

func TestMaskResourceRedactsEachPath(t *testing.T) {
	mask := NewMaskService()
	resource := NewResourceService(mask)

	original := models.Resource{
		"location": models.Resource{"here": "here"},
		"key1":     "secret1",
		"key2":     "secret2",
	}

	result, err := resource.MaskResource(MaskResourceInput{
		Resource:      original,
		URLToResource: "https://example.com/resources/1",
		Paths:         []string{"/location", "/key1"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Nonce)
	assert.Equal(t, "https://example.com/resources/1/_meta/nonce", result.NonceURL)

	paths := NewPathService().FindAllMaskPathsInResource(result.Resource)
	assert.ElementsMatch(t, []string{"/location", "/key1"}, paths)

	// key2 is untouched.
	assert.Equal(t, "secret2", result.Resource["key2"])
}

func TestMaskResourceDoesNotMutateInput(t *testing.T) {
	mask := NewMaskService()
	resource := NewResourceService(mask)

	original := models.Resource{"location": models.Resource{"here": "here"}}

	_, err := resource.MaskResource(MaskResourceInput{
		Resource:      original,
		URLToResource: "https://example.com/resources/1",
		Paths:         []string{"/location"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.Resource{"location": models.Resource{"here": "here"}}, original)
}

func TestMaskResourceSentinelWithoutURL(t *testing.T) {
	mask := NewMaskService()
	resource := NewResourceService(mask)

	result, err := resource.MaskResource(MaskResourceInput{Resource: models.Resource{"a": 1}, Paths: []string{"/a"}})
	require.NoError(t, err)
	assert.Empty(t, result.Nonce)
	assert.Nil(t, result.Resource)
}

func TestReconstructOriginalFromMaskPathsRestoresValues(t *testing.T) {
	maskSvc := NewMaskService()
	resourceSvc := NewResourceService(maskSvc)

	original := models.Resource{"location": models.Resource{"here": "here"}}

	masked, err := resourceSvc.MaskResource(MaskResourceInput{
		Resource:      original,
		URLToResource: "https://example.com/resources/1",
		Paths:         []string{"/location"},
	})
	require.NoError(t, err)

	conn := newFakeConnection("https://example.com")
	conn.resources["https://example.com/resources/1/location"] = models.Resource{"here": "here"}
	conn.resources["https://example.com/resources/1/_meta/nonce"] = masked.Nonce

	rc := resourceSvc.ReconstructOriginalFromMaskPaths(context.Background(), ReconstructInput{
		MaskedResource: masked.Resource,
		Paths:          []string{"/location"},
		Connection:     conn,
	})

	assert.True(t, rc.Valid)
	assert.True(t, rc.Match)
	assert.Equal(t, models.Resource{"here": "here"}, rc.Resource["location"])
}

func TestReconstructOriginalFromMaskPathsReportsMismatchButStillReconstructs(t *testing.T) {
	maskSvc := NewMaskService()
	resourceSvc := NewResourceService(maskSvc)

	original := models.Resource{"location": models.Resource{"here": "here"}}

	masked, err := resourceSvc.MaskResource(MaskResourceInput{
		Resource:      original,
		URLToResource: "https://example.com/resources/1",
		Paths:         []string{"/location"},
	})
	require.NoError(t, err)

	conn := newFakeConnection("https://example.com")
	// Remote original has since been tampered with.
	conn.resources["https://example.com/resources/1/location"] = models.Resource{"here": "tampered"}
	conn.resources["https://example.com/resources/1/_meta/nonce"] = masked.Nonce

	rc := resourceSvc.ReconstructOriginalFromMaskPaths(context.Background(), ReconstructInput{
		MaskedResource: masked.Resource,
		Paths:          []string{"/location"},
		Connection:     conn,
	})

	assert.True(t, rc.Valid)
	assert.False(t, rc.Match)
	assert.Equal(t, models.Resource{"here": "tampered"}, rc.Resource["location"])
}
