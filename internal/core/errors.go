package core

import "errors"

var (
	// ErrNotFound is returned by repositories for missing records.
	ErrNotFound = errors.New("record not found")

	// ErrKeyNotInitialized is a precondition violation: encrypt/decrypt
	// was called before the key manager was initialized.
	ErrKeyNotInitialized = errors.New("encryption key not initialized")

	// ErrKeyMismatch indicates a payload decrypted with the wrong key:
	// authentication failed or the output was not parseable. Distinct
	// from an archive integrity mismatch, which is a soft failure.
	ErrKeyMismatch = errors.New("decryption key mismatch")
)
