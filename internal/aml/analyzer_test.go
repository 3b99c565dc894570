package aml

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	icrypto "github.com/musig5344/ocasino/internal/crypto"
	"github.com/musig5344/ocasino/internal/domain"
)

func TestExcludeByID(t *testing.T) {
	keep := domain.Transaction{ID: uuid.New()}
	drop := domain.Transaction{ID: uuid.New()}

	out := excludeByID([]domain.Transaction{keep, drop}, drop.ID)

	require.Len(t, out, 1)
	assert.Equal(t, keep.ID, out[0].ID)
}

func TestAnalyzer_DecryptAmountRoundTrip(t *testing.T) {
	cipher, err := icrypto.NewAmountCipher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	a := &Analyzer{cipher: cipher}

	blob, err := cipher.Encrypt([]byte("123456"))
	require.NoError(t, err)

	amount, err := a.decryptAmount(blob)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), amount)
}
