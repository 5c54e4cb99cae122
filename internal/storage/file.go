package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/gophcal/internal/common"
	"github.com/dmitrijs2005/gophcal/internal/filex"
)

// SaveFile stores v at path, replacing any previous content atomically.
func SaveFile(path string, c Encrypter, v any) error {
	var buf bytes.Buffer
	if err := Save(&buf, c, v); err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("%w: %w", common.ErrIO, err)
	}
	return nil
}

// LoadFile decodes the value stored at path into v. A missing file is
// reported as common.ErrNotFound, distinct from a present but unreadable one.
func LoadFile(path string, c Decrypter, v any) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", common.ErrNotFound, path)
		}
		return fmt.Errorf("%w: %w", common.ErrIO, err)
	}
	defer f.Close()

	return Load(f, c, v)
}
