package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for API key hashing. Tuned for a lookup path that
// runs on every authenticated request, lighter than interactive-login
// parameters a human-facing password hash would use.
const (
	argon2Time    = 1
	argon2Memory  = 19 * 1024 // 19 MB
	argon2Threads = 2
	argon2KeyLen  = 32
	saltLen       = 16

	// lookupPepper is a fixed, application-wide value used only for the
	// indexed lookup digest (HashAPIKey): a "WHERE key_hash = $1" query
	// needs a deterministic column, so it cannot carry a per-value salt.
	// It is not the credential's security boundary — VerifyAPIKey is,
	// and that one is salted per spec's "per-value salt" requirement.
	lookupPepper = "ocasino-api-key-lookup-pepper-v1"
)

// HashAPIKey derives a deterministic argon2id digest for a raw API key,
// suitable for storage as an indexed lookup column. Not a defense against a
// stolen database on its own — VerifyAPIKey, keyed with a genuine per-value
// salt, is what actually authenticates a key once the row is in hand.
func HashAPIKey(rawKey string) string {
	sum := argon2.IDKey([]byte(rawKey), []byte(lookupPepper), argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return base64.RawURLEncoding.EncodeToString(sum)
}

// GenerateSalt produces a fresh random per-value salt for a newly issued
// API key, stored alongside the key row and consumed by VerifyAPIKey.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate api key salt: %w", err)
	}
	return salt, nil
}

// HashAPIKeyWithSalt derives the argon2id verification digest for a raw API
// key keyed with its own per-value salt (spec: "memory-hard key-derivation
// function with per-value salt"). This, not HashAPIKey, is the value
// VerifyAPIKey checks.
func HashAPIKeyWithSalt(rawKey string, salt []byte) string {
	sum := argon2.IDKey([]byte(rawKey), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return base64.RawURLEncoding.EncodeToString(sum)
}

// VerifyAPIKey recomputes the per-value-salted digest and compares it
// against the stored value in constant time.
func VerifyAPIKey(rawKey string, salt []byte, stored string) bool {
	want, err := base64.RawURLEncoding.DecodeString(stored)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(rawKey), salt, argon2Time, argon2Memory, argon2Threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
