package services

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophcal/internal/client/repositories/state"
	"github.com/dmitrijs2005/gophcal/internal/client/store"
	"github.com/dmitrijs2005/gophcal/internal/common"
	"github.com/dmitrijs2005/gophcal/internal/cryptox"
	"github.com/google/uuid"
)

// KeyService creates, protects and unlocks the device crypto context.
//
// The data key never touches disk in clear: it is wrapped under a master key
// derived from the passphrase (argon2id, random salt) and only the salt, a
// verifier of the master key and the wrapped key are stored.
type KeyService struct {
	store *store.Store
	suite cryptox.Suite
}

func NewKeyService(s *store.Store, suite cryptox.Suite) *KeyService {
	return &KeyService{store: s, suite: suite}
}

// Initialized reports whether a key has been stored on this device.
func (k *KeyService) Initialized(ctx context.Context) (bool, error) {
	_, err := k.store.State.Get(ctx, state.KeyWrappedKey)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Init generates a fresh key for this device and protects it with passphrase.
// It refuses to replace an existing key with common.ErrAlreadyInitialized.
func (k *KeyService) Init(ctx context.Context, passphrase []byte) (*cryptox.Context, error) {
	c, err := cryptox.New(cryptox.WithSuite(k.suite))
	if err != nil {
		return nil, err
	}
	if err := k.persist(ctx, passphrase, c); err != nil {
		c.Wipe()
		return nil, err
	}
	return c, nil
}

// Import initializes this device with a key exported from another one, so
// both can read each other's blobs.
func (k *KeyService) Import(ctx context.Context, passphrase []byte, hexKey string) (*cryptox.Context, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: key is not hex: %w", common.ErrInvalidKeyLength, err)
	}
	defer common.WipeByteArray(key)

	c, err := cryptox.FromKey(key, cryptox.WithSuite(k.suite))
	if err != nil {
		return nil, err
	}
	if err := k.persist(ctx, passphrase, c); err != nil {
		c.Wipe()
		return nil, err
	}
	return c, nil
}

func (k *KeyService) persist(ctx context.Context, passphrase []byte, c *cryptox.Context) error {
	salt := common.GenerateRandByteArray(common.SaltSize)
	masterKey := cryptox.DeriveMasterKey(passphrase, salt)
	defer common.WipeByteArray(masterKey)

	key := c.Key()
	defer common.WipeByteArray(key)

	wrapped, err := cryptox.WrapKey(masterKey, key)
	if err != nil {
		return err
	}

	return k.store.InTx(ctx, func(ctx context.Context, r *store.Repositories) error {
		_, err := r.State.Get(ctx, state.KeyWrappedKey)
		if err == nil {
			return common.ErrAlreadyInitialized
		}
		if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		if _, err := r.State.Get(ctx, state.KeyDeviceID); errors.Is(err, common.ErrNotFound) {
			if err := r.State.Set(ctx, state.KeyDeviceID, []byte(uuid.NewString())); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		values := map[string][]byte{
			state.KeySalt:       salt,
			state.KeyVerifier:   cryptox.MakeVerifier(masterKey),
			state.KeyWrappedKey: wrapped,
			state.KeySuite:      []byte(c.Suite()),
		}
		for name, v := range values {
			if err := r.State.Set(ctx, name, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Unlock derives the master key from passphrase, verifies it and unwraps the
// device key. A wrong passphrase yields common.ErrUnauthorized; a device that
// was never initialized yields common.ErrNotInitialized.
func (k *KeyService) Unlock(ctx context.Context, passphrase []byte) (*cryptox.Context, error) {
	vals, err := k.loadState(ctx)
	if err != nil {
		return nil, err
	}

	masterKey := cryptox.DeriveMasterKey(passphrase, vals[state.KeySalt])
	defer common.WipeByteArray(masterKey)

	if subtle.ConstantTimeCompare(vals[state.KeyVerifier], cryptox.MakeVerifier(masterKey)) == 0 {
		return nil, common.ErrUnauthorized
	}

	key, err := cryptox.UnwrapKey(masterKey, vals[state.KeyWrappedKey])
	if err != nil {
		return nil, fmt.Errorf("unwrap device key: %w", err)
	}
	defer common.WipeByteArray(key)

	suite, err := cryptox.ParseSuite(string(vals[state.KeySuite]))
	if err != nil {
		return nil, err
	}
	return cryptox.FromKey(key, cryptox.WithSuite(suite))
}

func (k *KeyService) loadState(ctx context.Context) (map[string][]byte, error) {
	vals := make(map[string][]byte, 4)
	for _, name := range []string{state.KeySalt, state.KeyVerifier, state.KeyWrappedKey, state.KeySuite} {
		v, err := k.store.State.Get(ctx, name)
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotInitialized
		}
		if err != nil {
			return nil, err
		}
		vals[name] = v
	}
	return vals, nil
}

// Export unlocks the device and returns its key in hex for copying to another
// device.
func (k *KeyService) Export(ctx context.Context, passphrase []byte) (string, error) {
	c, err := k.Unlock(ctx, passphrase)
	if err != nil {
		return "", err
	}
	defer c.Wipe()

	key := c.Key()
	defer common.WipeByteArray(key)
	return hex.EncodeToString(key), nil
}

// DeviceID returns the identifier this device publishes its logs under.
func (k *KeyService) DeviceID(ctx context.Context) (string, error) {
	v, err := k.store.State.Get(ctx, state.KeyDeviceID)
	if errors.Is(err, common.ErrNotFound) {
		return "", common.ErrNotInitialized
	}
	if err != nil {
		return "", err
	}
	return string(v), nil
}
