package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// encryptedPrefix marks a token sealed by the encryption middleware.
const encryptedPrefix = "enc:v1:"

// ErrNotEncrypted is returned when a stored token was written without encryption.
var ErrNotEncrypted = errors.New("session token is not encrypted")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new tokens.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are older keys tried when the active key cannot open a token.
	FallbackKeys [][]byte
}

// Validate reports keys of the wrong size.
func (c EncryptionConfig) Validate() error {
	if len(c.ActiveKey) != 32 {
		return fmt.Errorf("active key must be 32 bytes (AES-256), got %d", len(c.ActiveKey))
	}
	for i, k := range c.FallbackKeys {
		if len(k) != 32 {
			return fmt.Errorf("fallback key %d must be 32 bytes (AES-256), got %d", i, len(k))
		}
	}
	return nil
}

type encryptionMiddleware struct {
	next   ports.SessionStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals session tokens with AES-GCM.
// Hosts and timestamps stay readable so stores can still list and expire records.
// It panics when config does not validate.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if err := config.Validate(); err != nil {
		panic(err)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Put(ctx context.Context, rec domain.SessionRecord) error {
	sealed, err := encrypt([]byte(rec.Token), m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt session token: %w", err)
	}
	rec.Token = encryptedPrefix + base64.StdEncoding.EncodeToString(sealed)
	return m.next.Put(ctx, rec)
}

func (m *encryptionMiddleware) Get(ctx context.Context, host string) (domain.SessionRecord, error) {
	rec, err := m.next.Get(ctx, host)
	if err != nil {
		return rec, err
	}

	encoded, ok := strings.CutPrefix(rec.Token, encryptedPrefix)
	if !ok {
		return domain.SessionRecord{}, fmt.Errorf("%w: %s", ErrNotEncrypted, host)
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("failed to decode session token: %w", err)
	}
	plain, err := decryptWithRotation(sealed, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("failed to decrypt session token: %w", err)
	}
	rec.Token = string(plain)
	return rec, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, host string) error {
	return m.next.Delete(ctx, host)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}

// ParseKey decodes a base64 (standard or URL alphabet) AES-256 key.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		key, err = base64.URLEncoding.DecodeString(s)
	}
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes (AES-256), got %d", len(key))
	}
	return key, nil
}
