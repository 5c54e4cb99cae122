// Package remote moves opaque blobs between devices through a shared store:
// a directory (network share, synced folder, USB stick) or an S3 bucket.
//
// Blob names are slash-separated paths such as "logs/<device>/<n>.log". The
// store never interprets content; everything it carries is already sealed by
// the crypto context.
package remote

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dmitrijs2005/gophcal/internal/client/config"
	"github.com/dmitrijs2005/gophcal/internal/common"
)

// Store is a flat namespace of blobs. Get reports common.ErrNotFound for a
// missing name. List returns names starting with prefix in lexical order.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) error
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// New builds the store selected by cfg.Kind.
func New(ctx context.Context, cfg config.Remote) (Store, error) {
	switch cfg.Kind {
	case "dir":
		return NewDirStore(cfg.Dir)
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownRemote, cfg.Kind)
	}
}

// cleanName rejects names that would escape the store root.
func cleanName(name string) (string, error) {
	clean := path.Clean(name)
	if name == "" || clean == "." || strings.HasPrefix(clean, "/") || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return clean, nil
}
