package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashAPIKey_IsDeterministic(t *testing.T) {
	raw := "live_sk_abc123def456"

	h1 := HashAPIKey(raw)
	h2 := HashAPIKey(raw)

	assert.NotEmpty(t, h1)
	assert.Equal(t, h1, h2)
}

func TestHashAPIKey_DifferentKeysDifferentHashes(t *testing.T) {
	assert.NotEqual(t, HashAPIKey("key-a"), HashAPIKey("key-b"))
}

func TestVerifyAPIKey_RoundTrip(t *testing.T) {
	raw := "test_sk_xyz"
	salt, err := GenerateSalt()
	assert.NoError(t, err)
	hash := HashAPIKeyWithSalt(raw, salt)

	assert.True(t, VerifyAPIKey(raw, salt, hash))
	assert.False(t, VerifyAPIKey("wrong-key", salt, hash))
}

func TestVerifyAPIKey_RejectsMalformedStored(t *testing.T) {
	salt, err := GenerateSalt()
	assert.NoError(t, err)
	assert.False(t, VerifyAPIKey("any", salt, "not-valid-base64!!"))
}

func TestGenerateSalt_ProducesDistinctValues(t *testing.T) {
	a, err := GenerateSalt()
	assert.NoError(t, err)
	b, err := GenerateSalt()
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashAPIKeyWithSalt_DifferentSaltsDifferentHashes(t *testing.T) {
	raw := "test_sk_xyz"
	saltA, _ := GenerateSalt()
	saltB, _ := GenerateSalt()
	assert.NotEqual(t, HashAPIKeyWithSalt(raw, saltA), HashAPIKeyWithSalt(raw, saltB))
}
