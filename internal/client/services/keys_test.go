package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/gophcal/internal/client/repositories/state"
	"github.com/dmitrijs2005/gophcal/internal/common"
	"github.com/dmitrijs2005/gophcal/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var passphrase = []byte("correct horse battery staple")

func TestKeyService_InitAndUnlock(t *testing.T) {
	ctx := context.Background()
	ks := NewKeyService(newStore(t), cryptox.DefaultSuite)

	ok, err := ks.Initialized(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	created, err := ks.Init(ctx, passphrase)
	require.NoError(t, err)

	ok, err = ks.Initialized(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	unlocked, err := ks.Unlock(ctx, passphrase)
	require.NoError(t, err)
	assert.Equal(t, created.Key(), unlocked.Key())
	assert.Equal(t, cryptox.DefaultSuite, unlocked.Suite())

	blob, err := created.Encrypt([]byte("meeting"))
	require.NoError(t, err)
	plain, err := unlocked.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "meeting", string(plain))
}

func TestKeyService_DoesNotStoreKeyInClear(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	ks := NewKeyService(s, cryptox.DefaultSuite)

	c, err := ks.Init(ctx, passphrase)
	require.NoError(t, err)

	all, err := s.State.List(ctx)
	require.NoError(t, err)
	for k, v := range all {
		assert.NotContains(t, string(v), string(c.Key()), k)
	}
}

func TestKeyService_InitTwice(t *testing.T) {
	ctx := context.Background()
	ks := NewKeyService(newStore(t), cryptox.DefaultSuite)

	first, err := ks.Init(ctx, passphrase)
	require.NoError(t, err)

	_, err = ks.Init(ctx, []byte("other"))
	require.ErrorIs(t, err, common.ErrAlreadyInitialized)

	c, err := ks.Unlock(ctx, passphrase)
	require.NoError(t, err)
	assert.Equal(t, first.Key(), c.Key())
}

func TestKeyService_UnlockWrongPassphrase(t *testing.T) {
	ctx := context.Background()
	ks := NewKeyService(newStore(t), cryptox.DefaultSuite)
	_, err := ks.Init(ctx, passphrase)
	require.NoError(t, err)

	_, err = ks.Unlock(ctx, []byte("wrong"))
	require.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestKeyService_NotInitialized(t *testing.T) {
	ctx := context.Background()
	ks := NewKeyService(newStore(t), cryptox.DefaultSuite)

	_, err := ks.Unlock(ctx, passphrase)
	require.ErrorIs(t, err, common.ErrNotInitialized)

	_, err = ks.Export(ctx, passphrase)
	require.ErrorIs(t, err, common.ErrNotInitialized)

	_, err = ks.DeviceID(ctx)
	require.ErrorIs(t, err, common.ErrNotInitialized)
}

func TestKeyService_SuiteIsStored(t *testing.T) {
	ctx := context.Background()
	ks := NewKeyService(newStore(t), cryptox.SuiteAES256GCM)
	_, err := ks.Init(ctx, passphrase)
	require.NoError(t, err)

	// A service configured with another suite still opens the stored one.
	other := &KeyService{store: ks.store, suite: cryptox.SuiteXChaCha20Poly1305}
	c, err := other.Unlock(ctx, passphrase)
	require.NoError(t, err)
	assert.Equal(t, cryptox.SuiteAES256GCM, c.Suite())
}

func TestKeyService_ExportImport(t *testing.T) {
	ctx := context.Background()
	laptop := NewKeyService(newStore(t), cryptox.DefaultSuite)
	phone := NewKeyService(newStore(t), cryptox.DefaultSuite)

	a, err := laptop.Init(ctx, passphrase)
	require.NoError(t, err)

	hexKey, err := laptop.Export(ctx, passphrase)
	require.NoError(t, err)
	assert.Len(t, hexKey, 2*common.KeySize)

	b, err := phone.Import(ctx, []byte("phone pin"), hexKey)
	require.NoError(t, err)

	blob, err := a.Encrypt([]byte("shared"))
	require.NoError(t, err)
	plain, err := b.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "shared", string(plain))

	// Devices share the key, not the identity.
	laptopID, err := laptop.DeviceID(ctx)
	require.NoError(t, err)
	phoneID, err := phone.DeviceID(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, laptopID, phoneID)

	_, err = phone.Unlock(ctx, []byte("phone pin"))
	require.NoError(t, err)
}

func TestKeyService_ImportInvalid(t *testing.T) {
	ctx := context.Background()
	ks := NewKeyService(newStore(t), cryptox.DefaultSuite)

	_, err := ks.Import(ctx, passphrase, "not-hex")
	require.ErrorIs(t, err, common.ErrInvalidKeyLength)

	_, err = ks.Import(ctx, passphrase, "abcd")
	require.ErrorIs(t, err, common.ErrInvalidKeyLength)

	ok, err := ks.Initialized(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeyService_DeviceIDIsStable(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.State.Set(ctx, state.KeyDeviceID, []byte("laptop")))

	ks := NewKeyService(s, cryptox.DefaultSuite)
	_, err := ks.Init(ctx, passphrase)
	require.NoError(t, err)

	id, err := ks.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "laptop", id)
}
