// Package crypto holds the amount-at-rest cipher and the API-key hashing
// primitives the auth pipeline and wallet engine depend on.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/musig5344/ocasino/internal/domain"
)

const nonceSize = 12 // 96 bits, per AES-GCM recommendation

// AmountCipher encrypts and decrypts transaction amounts with AES-256-GCM.
// It is constructed once at startup from the configured encryption key and
// fails closed: with no key configured, both Encrypt and Decrypt error
// rather than fall back to storing plaintext.
type AmountCipher struct {
	gcm cipher.AEAD
}

// NewAmountCipher builds a cipher from a 32-byte key. Returns an error if
// the key is not exactly 32 bytes (AES-256).
func NewAmountCipher(key []byte) (*AmountCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &AmountCipher{gcm: gcm}, nil
}

// Encrypt seals plaintext into a base64 URL-safe blob laid out as
// nonce || ciphertext || tag.
func (c *AmountCipher) Encrypt(plaintext []byte) (string, error) {
	if c == nil {
		return "", domain.ErrInternal("amount cipher not configured", nil)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. On any failure it returns a typed error that
// does not leak the underlying cause (bad key, truncated blob, tampered
// ciphertext all collapse to the same message).
func (c *AmountCipher) Decrypt(blob string) ([]byte, error) {
	if c == nil {
		return nil, domain.ErrInternal("amount cipher not configured", nil)
	}
	raw, err := base64.URLEncoding.DecodeString(blob)
	if err != nil {
		return nil, errDecryptFailed()
	}
	if len(raw) < nonceSize {
		return nil, errDecryptFailed()
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errDecryptFailed()
	}
	return plaintext, nil
}

func errDecryptFailed() error {
	return domain.ErrInternal("failed to decrypt stored amount", nil)
}
