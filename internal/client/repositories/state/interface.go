package state

import (
	"context"
)

// Well-known keys.
const (
	KeyDeviceID   = "device_id"
	KeySalt       = "salt"
	KeyVerifier   = "verifier"
	KeyWrappedKey = "wrapped_key"
	KeySuite      = "suite"
	KeyPullCursor = "pull_cursor"
	KeyPushSeq    = "push_seq"
)

// Repository is a key/value store. Get returns common.ErrNotFound for a
// missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
}
