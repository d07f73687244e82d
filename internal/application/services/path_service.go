// SPDX-License-Identifier: AGPL-3.0-or-later
package services

import (
	"sort"

	"github.com/trellisfw/masklink/internal/domain/models"
	"github.com/trellisfw/masklink/pkg/jsonpointer"
)

// PathService exposes mask-path discovery as a public operation: finding every mask
// in a resource tree. The depth-first walk itself lives in pkg/jsonpointer, a leaf
// package shared with pkg/crypto.
type PathService struct{}

// NewPathService constructs a PathService.
func NewPathService() *PathService {
	return &PathService{}
}

// FindAllMaskPathsInResource returns every JSON Pointer in root that resolves to a
// mask descriptor, sorted for a deterministic, testable ordering. Go map iteration on
// its own is not deterministic, so this service sorts the walker's output rather than
// relying on incidental map order.
func (s *PathService) FindAllMaskPathsInResource(root models.JSON) []string {
	paths := jsonpointer.FindAllMaskPaths(root)
	sort.Strings(paths)
	return paths
}
