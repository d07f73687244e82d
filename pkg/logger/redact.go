// SPDX-License-Identifier: AGPL-3.0-or-later
package logger

import "github.com/ggwhite/go-masker/v2"

// sensitiveValue lets a single string ride through go-masker's struct-tag masking
// (the same `mask:"..."` mechanism SALT-Indonesia's logmanager wires into its own
// structured logger) without requiring a bespoke domain struct per call site.
type sensitiveValue struct {
	V string `mask:"password"`
}

// Redact masks a secret-shaped value (a nonce, a hash, a raw signature) before it is
// attached to a log record, so an audit trail never contains a usable copy of a value
// that is only meant to be compared, not read. Only the empty string is returned
// unchanged.
func Redact(value string) string {
	if value == "" {
		return value
	}

	m := masker.NewMaskerMarshaler()
	result, err := m.Struct(&sensitiveValue{V: value})
	if err != nil {
		return redactFallback(value)
	}

	masked, ok := result.(*sensitiveValue)
	if !ok || masked.V == "" {
		return redactFallback(value)
	}

	return masked.V
}

// redactFallback shows a short, non-reversible preview when go-masker's struct
// marshaling cannot be used for some reason (e.g. an unexpected return shape).
func redactFallback(value string) string {
	const previewLen = 6
	if len(value) <= previewLen {
		return "***"
	}
	return value[:previewLen] + "..."
}
