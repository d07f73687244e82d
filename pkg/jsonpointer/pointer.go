// SPDX-License-Identifier: AGPL-3.0-or-later

// Package jsonpointer implements RFC 6901 JSON Pointer encoding and a mask-aware tree
// walk: depth-first traversal of a JSON resource that treats any mask descriptor as
// a leaf.
package jsonpointer

import (
	"strings"

	"github.com/trellisfw/masklink/internal/domain/models"
)

// Escape encodes a single reference token per RFC 6901: "~" becomes "~0" and "/"
// becomes "~1". Order matters — "~" must be escaped first.
func Escape(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	token = strings.ReplaceAll(token, "/", "~1")
	return token
}

// Unescape reverses Escape.
func Unescape(token string) string {
	token = strings.ReplaceAll(token, "~1", "/")
	token = strings.ReplaceAll(token, "~0", "~")
	return token
}

// Join appends an escaped token to an existing pointer.
func Join(pointer, token string) string {
	return pointer + "/" + Escape(token)
}

// Split decomposes a JSON Pointer into its unescaped reference tokens. The empty
// pointer decomposes to no tokens.
func Split(pointer string) []string {
	if pointer == "" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	tokens := make([]string, len(parts))
	for i, p := range parts {
		tokens[i] = Unescape(p)
	}
	return tokens
}

// FindAllMaskPaths performs a depth-first walk: at a non-object, no paths;
// at an object carrying "trellis-mask", the current path (and no recursion, masks are
// leaves); otherwise recurse into every key in map iteration order. Go's map iteration
// order is randomized, so for a deterministic, testable ordering callers needing
// reproducible output should sort the returned slice themselves (the set of paths is
// unaffected, only the order a single call happens to emit them in).
func FindAllMaskPaths(root models.JSON) []string {
	return walk(root, "")
}

func walk(node models.JSON, pointer string) []string {
	obj, ok := node.(map[string]interface{})
	if !ok {
		return nil
	}

	if _, hasMaskKey := obj[models.MaskFieldKey]; hasMaskKey || models.IsMask(obj) {
		return []string{pointer}
	}

	var paths []string
	for key, child := range obj {
		paths = append(paths, walk(child, Join(pointer, key))...)
	}
	return paths
}

// Resolve returns the value at pointer within root, and ok=false if any segment is
// missing or traverses through a non-object.
func Resolve(root models.JSON, pointer string) (models.JSON, bool) {
	tokens := Split(pointer)
	current := root
	for _, tok := range tokens {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[tok]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Set writes value at pointer within root, creating intermediate objects as needed.
// It mutates root in place; callers that must not mutate their input should deep-copy
// first (see models.DeepCopyResource).
func Set(root models.Resource, pointer string, value models.JSON) bool {
	tokens := Split(pointer)
	if len(tokens) == 0 {
		return false
	}

	current := root
	for _, tok := range tokens[:len(tokens)-1] {
		next, ok := current[tok]
		if !ok {
			created := models.Resource{}
			current[tok] = created
			current = created
			continue
		}
		nextObj, ok := next.(map[string]interface{})
		if !ok {
			return false
		}
		current = nextObj
	}

	current[tokens[len(tokens)-1]] = value
	return true
}
