// Package common defines shared constants, sentinel errors and small helpers
// used across the gophcal core and client layers. Callers should use
// errors.Is to match these values; most of them reach callers wrapped with
// additional context.
package common

import (
	"errors"
	"fmt"
)

// Crypto errors.
var (
	// ErrEncryption is an unrecoverable failure of the cipher primitive or the
	// random source while sealing.
	ErrEncryption = errors.New("encryption failed")

	// ErrDecryption is the family of all decryption failures.
	ErrDecryption = errors.New("decryption failed")

	// ErrAuthenticationFailed means the authenticator did not verify: wrong key,
	// tampered or corrupted blob.
	ErrAuthenticationFailed = fmt.Errorf("%w: authentication failed", ErrDecryption)

	// ErrMalformed means the blob is too short to carry a nonce.
	ErrMalformed = fmt.Errorf("%w: malformed blob", ErrDecryption)

	ErrInvalidKeyLength = errors.New("invalid key length")
	ErrUnknownSuite     = errors.New("unknown cipher suite")
)

// Content and codec errors.
var (
	// ErrMarshalFailed is returned by the change log when a Content value
	// cannot produce its serialized form.
	ErrMarshalFailed = errors.New("content marshal failed")

	ErrSerialization   = errors.New("serialization failed")
	ErrDeserialization = errors.New("deserialization failed")

	// ErrIO wraps sink/source failures of the persistence codec.
	ErrIO = errors.New("i/o error")
)

// Repository and service errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrEmptyID       = errors.New("empty object id")
	ErrValidation    = errors.New("validation error")

	ErrNotInitialized     = errors.New("device is not initialized")
	ErrAlreadyInitialized = errors.New("device is already initialized")
	ErrUnauthorized       = errors.New("unauthorized")

	ErrUnknownRemote = errors.New("unknown remote kind")
)
