package wallet

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	icrypto "github.com/musig5344/ocasino/internal/crypto"
	"github.com/musig5344/ocasino/internal/domain"
)

func validParams() OperationParams {
	return OperationParams{
		PartnerID:   uuid.New(),
		PlayerID:    "player-1",
		ReferenceID: "ref-1",
		Amount:      1000,
		Currency:    "USD",
	}
}

func TestOperationParams_Validate(t *testing.T) {
	t.Run("valid params pass", func(t *testing.T) {
		assert.NoError(t, validParams().validate())
	})

	t.Run("missing reference-id rejected", func(t *testing.T) {
		p := validParams()
		p.ReferenceID = ""
		assert.Error(t, p.validate())
	})

	t.Run("invalid currency rejected", func(t *testing.T) {
		p := validParams()
		p.Currency = "usd"
		assert.Error(t, p.validate())
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		p := validParams()
		p.Amount = 0
		err := p.validate()
		require.Error(t, err)
		appErr, ok := err.(*domain.AppError)
		require.True(t, ok)
		assert.Equal(t, "invalid-amount", appErr.Code)
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		p := validParams()
		p.Amount = -500
		assert.Error(t, p.validate())
	})
}

func TestRequireWalletCurrency(t *testing.T) {
	w := &domain.Wallet{Currency: "USD"}

	assert.NoError(t, requireWalletCurrency(w, "USD"))

	err := requireWalletCurrency(w, "EUR")
	require.Error(t, err)
	appErr, ok := err.(*domain.AppError)
	require.True(t, ok)
	assert.Equal(t, "currency-mismatch", appErr.Code)
}

func TestRequireWalletUnlocked(t *testing.T) {
	assert.NoError(t, requireWalletUnlocked(&domain.Wallet{Locked: false}))

	err := requireWalletUnlocked(&domain.Wallet{ID: uuid.New(), Locked: true})
	require.Error(t, err)
	appErr, ok := err.(*domain.AppError)
	require.True(t, ok)
	assert.Equal(t, "wallet-locked", appErr.Code)
}

func TestMergeMeta(t *testing.T) {
	t.Run("nil base with extras", func(t *testing.T) {
		result := mergeMeta(nil, map[string]interface{}{"roundId": "r1"})
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(result, &m))
		assert.Equal(t, "r1", m["roundId"])
	})

	t.Run("extras overwrite base", func(t *testing.T) {
		base := json.RawMessage(`{"roundId":"old"}`)
		result := mergeMeta(base, map[string]interface{}{"roundId": "new"})
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(result, &m))
		assert.Equal(t, "new", m["roundId"])
	})
}

func TestEngine_EncryptDecryptAmountRoundTrip(t *testing.T) {
	cipher, err := icrypto.NewAmountCipher(make([]byte, 32))
	require.NoError(t, err)
	e := &Engine{cipher: cipher}

	blob, err := e.encryptAmount(123456)
	require.NoError(t, err)
	assert.NotEmpty(t, blob)

	amount, err := e.decryptAmount(blob)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), amount)
}

func TestIdempotencyKey(t *testing.T) {
	p := validParams()
	key := p.idempotencyKey()
	assert.Equal(t, p.PartnerID, key.PartnerID)
	assert.Equal(t, p.ReferenceID, key.ReferenceID)
}

func TestRollbackTypeMap_CoversRollbackableTypes(t *testing.T) {
	for _, typ := range []domain.TransactionType{domain.TxBet, domain.TxWin, domain.TxWithdrawal} {
		_, ok := domain.RollbackTypeMap[typ]
		assert.True(t, ok, "expected %s to be rollbackable", typ)
	}

	_, ok := domain.RollbackTypeMap[domain.TxDeposit]
	assert.False(t, ok, "deposit should not be directly rollbackable per spec")
}
