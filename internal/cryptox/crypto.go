package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/gophcal/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Suite names the AEAD construction a Context seals with. The suite is not
// recorded in the blob, so writer and reader must be configured alike.
type Suite string

const (
	// SuiteXChaCha20Poly1305 uses a 24-byte random nonce.
	SuiteXChaCha20Poly1305 Suite = "xchacha20poly1305"
	// SuiteAES256GCM uses a 12-byte random nonce.
	SuiteAES256GCM Suite = "aes256gcm"

	DefaultSuite = SuiteXChaCha20Poly1305
)

// maxNonceDraws bounds how many times Encrypt redraws a nonce that equals the
// previously issued one before giving up on the random source.
const maxNonceDraws = 4

// ParseSuite converts a configuration string into a Suite. The empty string
// selects DefaultSuite.
func ParseSuite(s string) (Suite, error) {
	switch Suite(s) {
	case "":
		return DefaultSuite, nil
	case SuiteXChaCha20Poly1305, SuiteAES256GCM:
		return Suite(s), nil
	default:
		return "", fmt.Errorf("%w: %q", common.ErrUnknownSuite, s)
	}
}

// Option customizes a Context at construction time.
type Option func(*Context)

// WithSuite selects the AEAD construction.
func WithSuite(s Suite) Option {
	return func(c *Context) { c.suite = s }
}

// WithRandom replaces crypto/rand as the source of keys and nonces.
// Intended for tests.
func WithRandom(r io.Reader) Option {
	return func(c *Context) { c.rand = r }
}

// Context is the device's symmetric encryption context: one immutable key
// and the nonce most recently issued under it.
//
// A Context is safe for concurrent use; nonce generation is serialized by an
// internal mutex.
type Context struct {
	mu    sync.Mutex
	suite Suite
	rand  io.Reader
	key   []byte
	nonce []byte
	aead  cipher.AEAD
}

// New generates a fresh random key and initial nonce. Call it once per device
// identity: a new key makes every blob sealed under the old one unreadable.
func New(opts ...Option) (*Context, error) {
	c := newContext(opts)

	key := make([]byte, common.KeySize)
	if _, err := io.ReadFull(c.rand, key); err != nil {
		return nil, fmt.Errorf("%w: key generation: %v", common.ErrEncryption, err)
	}
	if err := c.init(key); err != nil {
		return nil, err
	}
	return c, nil
}

// FromKey rebuilds a Context around a key that was persisted or shared
// out-of-band. The key is copied.
func FromKey(key []byte, opts ...Option) (*Context, error) {
	if len(key) != common.KeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", common.ErrInvalidKeyLength, len(key), common.KeySize)
	}
	c := newContext(opts)
	if err := c.init(bytes.Clone(key)); err != nil {
		return nil, err
	}
	return c, nil
}

func newContext(opts []Option) *Context {
	c := &Context{suite: DefaultSuite, rand: rand.Reader}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) init(key []byte) error {
	aead, err := newAEAD(c.suite, key)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return fmt.Errorf("%w: nonce generation: %v", common.ErrEncryption, err)
	}
	c.key = key
	c.aead = aead
	c.nonce = nonce
	return nil
}

func newAEAD(s Suite, key []byte) (cipher.AEAD, error) {
	switch s {
	case SuiteXChaCha20Poly1305:
		return chacha20poly1305.NewX(key)
	case SuiteAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownSuite, s)
	}
}

// Encrypt seals plaintext under the context key and a nonce drawn fresh for
// this call. The result is self-describing:
//
//	[nonce (NonceSize bytes)][ciphertext + tag]
//
// so any device holding the key can open it without shared nonce state.
//
// Encrypt fails only with common.ErrEncryption, when the random source
// fails or keeps repeating the previous nonce.
//
// Example:
//
//	c, err := cryptox.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	blob, err := c.Encrypt([]byte("hello"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	plain, err := c.Decrypt(blob) // "hello"
func (c *Context) Encrypt(plaintext []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.aead == nil {
		return nil, fmt.Errorf("%w: context wiped", common.ErrEncryption)
	}

	nonce, err := c.nextNonce()
	if err != nil {
		return nil, err
	}

	blob := make([]byte, len(nonce), len(nonce)+len(plaintext)+c.aead.Overhead())
	copy(blob, nonce)
	return c.aead.Seal(blob, nonce, plaintext, nil), nil
}

// nextNonce draws a random nonce that differs from the last one issued and
// records it. Callers hold c.mu.
func (c *Context) nextNonce() ([]byte, error) {
	next := make([]byte, len(c.nonce))
	for i := 0; i < maxNonceDraws; i++ {
		if _, err := io.ReadFull(c.rand, next); err != nil {
			return nil, fmt.Errorf("%w: nonce generation: %v", common.ErrEncryption, err)
		}
		if !bytes.Equal(next, c.nonce) {
			copy(c.nonce, next)
			return next, nil
		}
	}
	return nil, fmt.Errorf("%w: random source repeated the previous nonce", common.ErrEncryption)
}

// Decrypt splits the nonce prefix from blob and opens the remainder.
//
// Errors:
//   - common.ErrMalformed when blob is shorter than the nonce.
//   - common.ErrAuthenticationFailed when the tag does not verify (wrong key,
//     tampering, corrupted nonce or truncated ciphertext).
//
// Both match common.ErrDecryption. No plaintext is returned on error.
func (c *Context) Decrypt(blob []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.aead == nil {
		return nil, fmt.Errorf("%w: context wiped", common.ErrDecryption)
	}

	ns := c.aead.NonceSize()
	if len(blob) < ns {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", common.ErrMalformed, len(blob), ns)
	}

	plaintext, err := c.aead.Open(nil, blob[:ns], blob[ns:], nil)
	if err != nil {
		return nil, common.ErrAuthenticationFailed
	}
	return plaintext, nil
}

// NonceSize is the length of the nonce prefix of every blob.
func (c *Context) NonceSize() int {
	return len(c.nonce)
}

// Suite reports the AEAD construction in use.
func (c *Context) Suite() Suite {
	return c.suite
}

// Key returns a copy of the key for out-of-band export.
func (c *Context) Key() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.key)
}

// Wipe zeroes the key held by the context. Encrypt and Decrypt fail afterwards.
func (c *Context) Wipe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	common.WipeByteArray(c.key)
	c.aead = nil
}

// MakeVerifier returns a value that proves knowledge of masterKey without
// revealing it.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// DeriveMasterKey stretches a passphrase into a 32-byte key with argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, common.KeySize)
}

// WrapKey seals a data key under masterKey for storage at rest, using the
// same nonce-prefixed blob format as Encrypt.
func WrapKey(masterKey, key []byte) ([]byte, error) {
	c, err := FromKey(masterKey)
	if err != nil {
		return nil, err
	}
	defer c.Wipe()
	return c.Encrypt(key)
}

// UnwrapKey reverses WrapKey. A wrong master key yields
// common.ErrAuthenticationFailed.
func UnwrapKey(masterKey, wrapped []byte) ([]byte, error) {
	c, err := FromKey(masterKey)
	if err != nil {
		return nil, err
	}
	defer c.Wipe()
	return c.Decrypt(wrapped)
}
