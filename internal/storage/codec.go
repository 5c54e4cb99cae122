// Package storage persists values as encrypted blobs. A value is encoded as
// JSON, sealed by a crypto context, and written in one piece; loading runs the
// same steps in reverse.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophcal/internal/common"
)

// Encrypter seals plaintext into a self-contained blob.
type Encrypter interface {
	Encrypt(plaintext []byte) ([]byte, error)
}

// Decrypter opens a blob produced by the matching Encrypter.
type Decrypter interface {
	Decrypt(blob []byte) ([]byte, error)
}

// Save serializes v, encrypts it with c and writes the blob to w with a
// single Write. Nothing reaches w unless serialization and encryption both
// succeeded.
//
// Errors wrap common.ErrSerialization, common.ErrEncryption or common.ErrIO
// (including short writes).
func Save(w io.Writer, c Encrypter, v any) error {
	plain, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrSerialization, err)
	}

	blob, err := c.Encrypt(plain)
	common.WipeByteArray(plain)
	if err != nil {
		if errors.Is(err, common.ErrEncryption) {
			return err
		}
		return fmt.Errorf("%w: %w", common.ErrEncryption, err)
	}

	n, err := w.Write(blob)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrIO, err)
	}
	if n != len(blob) {
		return fmt.Errorf("%w: wrote %d of %d bytes: %w", common.ErrIO, n, len(blob), io.ErrShortWrite)
	}
	return nil
}

// Load reads r to EOF, decrypts the blob with c and decodes it into v, which
// must be a pointer.
//
// Decryption errors are returned as produced by c, so callers can tell an
// authentication failure from a read or decode problem. An empty source is
// common.ErrMalformed: a blob always carries at least a nonce.
func Load(r io.Reader, c Decrypter, v any) error {
	blob, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrIO, err)
	}
	if len(blob) == 0 {
		return fmt.Errorf("%w: empty source", common.ErrMalformed)
	}

	plain, err := c.Decrypt(blob)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(plain)

	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("%w: %w", common.ErrDeserialization, err)
	}
	return nil
}

// LoadAs is Load for callers that prefer a typed return value.
func LoadAs[T any](r io.Reader, c Decrypter) (T, error) {
	var v T
	if err := Load(r, c, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
