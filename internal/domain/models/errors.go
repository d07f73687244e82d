// SPDX-License-Identifier: AGPL-3.0-or-later
package models

import "errors"

var (
	// ErrMissingNonceURL is returned by mask when nonceurl is absent.
	ErrMissingNonceURL = errors.New("nonceurl is required")
	// ErrInvalidArgument is returned when a remote masking request is missing url or paths.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMissingCredentials is returned when a connection cannot be resolved from the
	// supplied token/connection/domain.
	ErrMissingCredentials = errors.New("missing credentials: supply a connection or a token and domain")
	// ErrOriginalFetchFailed is returned when the original resource could not be fetched.
	ErrOriginalFetchFailed = errors.New("failed to fetch original resource")
	// ErrNonceFetchFailed is returned when a mask's nonce could not be fetched.
	ErrNonceFetchFailed = errors.New("failed to fetch nonce")
	// ErrNoncePersistFailed is returned when a newly generated nonce could not be PUT.
	ErrNoncePersistFailed = errors.New("failed to persist nonce")
	// ErrCopyPersistFailed is returned when the masked resource copy could not be POSTed.
	ErrCopyPersistFailed = errors.New("failed to persist masked resource copy")
	// ErrModificationUnsupported is returned when a signature payload carries a
	// "modification" type signature; this core only understands "mask" signatures.
	ErrModificationUnsupported = errors.New("modification signatures are not supported")
	// ErrSignatureInvalid marks a signature whose external verification failed.
	ErrSignatureInvalid = errors.New("signature verification failed")
	// ErrNotAMask is returned by operations that require a well-formed mask descriptor.
	ErrNotAMask = errors.New("value is not a mask descriptor")
	// ErrResourceRootMask is returned when a caller attempts to mask an entire resource root.
	ErrResourceRootMask = errors.New("masking an entire resource root is not allowed")
	// ErrDatabaseConnection signals an audit-store connectivity failure.
	ErrDatabaseConnection = errors.New("database connection error")
	// ErrUnauthorized is returned by the admin API when the session is missing or invalid.
	ErrUnauthorized = errors.New("unauthorized")
)
