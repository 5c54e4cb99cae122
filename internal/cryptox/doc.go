// Package cryptox provides the device crypto context: authenticated
// symmetric encryption under one long-lived key, with nonce handling kept
// inside the package so callers cannot reuse a nonce.
//
// # Blob format
//
// Every sealed payload is written as
//
//	[nonce][ciphertext || tag]
//
// with no header. The nonce length is fixed by the Suite (24 bytes for
// XChaCha20-Poly1305, 12 for AES-256-GCM) and must match between writer and
// reader.
//
// # Keys
//
// The data key is generated once per device (New) and shared with other
// devices out-of-band (FromKey). At rest it is kept wrapped under a
// passphrase-derived master key (DeriveMasterKey, WrapKey, UnwrapKey).
package cryptox
