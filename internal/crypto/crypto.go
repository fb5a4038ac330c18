package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"golang.org/x/crypto/scrypt"
)

const (
	KeySize   = 32      // AES-256 key size
	NonceSize = 12      // GCM nonce size
	TagSize   = 16      // GCM authentication tag size
	SaltSize  = 16      // Size of salts produced by GenerateSalt
	ScryptN   = 1 << 16 // scrypt cost parameter
	ScryptR   = 8       // scrypt block size factor
	ScryptP   = 2       // scrypt parallelism factor
)

var (
	ErrInvalidInput   = errors.New("invalid key derivation input")
	ErrAuthentication = errors.New("authentication failed")
	ErrNotText        = errors.New("plaintext is not valid UTF-8")
	ErrDestroyed      = errors.New("cryptographer has been destroyed")
)

// Secret is a password or salt given either as text or as raw bytes.
// Text is used as its UTF-8 encoding.
type Secret interface {
	~string | ~[]byte
}

// Cryptographer encrypts and decrypts with a key derived from a password and salt
type Cryptographer struct {
	mu   sync.RWMutex
	key  []byte
	aead cipher.AEAD // nil once destroyed
}

// New derives the key for password and salt and prepares AES-256-GCM.
// The salt is used exactly as given and must be reused for decryption.
func New[P, S Secret](password P, salt S) (*Cryptographer, error) {
	saltBytes := []byte(salt)
	if len(saltBytes) == 0 {
		return nil, fmt.Errorf("%w: empty salt", ErrInvalidInput)
	}

	key, err := scrypt.Key([]byte(password), saltBytes, ScryptN, ScryptR, ScryptP, KeySize)
	if err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		ClearBytes(key)
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		ClearBytes(key)
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Cryptographer{
		key:  key,
		aead: gcm,
	}, nil
}

// Encrypt returns nonce || ciphertext || tag for plaintext
func (c *Cryptographer) Encrypt(plaintext []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.aead == nil {
		return nil, ErrDestroyed
	}

	out := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends ciphertext and tag after the nonce prefix
	return c.aead.Seal(out, out[:NonceSize], plaintext, nil), nil
}

// EncryptText encrypts the UTF-8 bytes of plaintext
func (c *Cryptographer) EncryptText(plaintext string) ([]byte, error) {
	return c.Encrypt([]byte(plaintext))
}

// Decrypt verifies and decrypts a blob produced by Encrypt.
// Every failure is reported as ErrAuthentication. A destroyed
// Cryptographer returns ErrDestroyed without looking at blob.
func (c *Cryptographer) Decrypt(blob []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.aead == nil {
		return nil, ErrDestroyed
	}

	if len(blob) < NonceSize+TagSize {
		return nil, ErrAuthentication
	}

	plaintext, err := c.aead.Open(nil, blob[:NonceSize], blob[NonceSize:], nil)
	if err != nil {
		return nil, ErrAuthentication
	}

	return plaintext, nil
}

// DecryptText decrypts blob and returns the plaintext as a string.
// It returns ErrNotText when the plaintext is not valid UTF-8.
func (c *Cryptographer) DecryptText(blob []byte) (string, error) {
	plaintext, err := c.Decrypt(blob)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plaintext) {
		ClearBytes(plaintext)
		return "", ErrNotText
	}
	return string(plaintext), nil
}

// Destroy clears the derived key and drops the cipher. Later calls to
// Encrypt or Decrypt return ErrDestroyed. Destroy may be called more than once.
func (c *Cryptographer) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	ClearBytes(c.key)
	c.key = nil
	c.aead = nil
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// GenerateSalt returns a new random salt as hex text, ready to be stored
// in SALT and passed to New as a string.
func GenerateSalt() (string, error) {
	b, err := GenerateRandom(SaltSize)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
