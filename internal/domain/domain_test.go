package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPartner_IsActive(t *testing.T) {
	cases := []struct {
		name   string
		status PartnerStatus
		want   bool
	}{
		{"active", PartnerActive, true},
		{"inactive", PartnerInactive, false},
		{"suspended", PartnerSuspended, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &Partner{Status: tc.status}
			assert.Equal(t, tc.want, p.IsActive())
		})
	}
}

func TestApiKey_IsExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no expiry never expires", func(t *testing.T) {
		k := &ApiKey{}
		assert.False(t, k.IsExpired(now))
	})

	t.Run("future expiry not expired", func(t *testing.T) {
		future := now.Add(time.Hour)
		k := &ApiKey{ExpiresAt: &future}
		assert.False(t, k.IsExpired(now))
	})

	t.Run("past expiry is expired", func(t *testing.T) {
		past := now.Add(-time.Hour)
		k := &ApiKey{ExpiresAt: &past}
		assert.True(t, k.IsExpired(now))
	})
}

func TestRollbackTypeMap(t *testing.T) {
	cases := []struct {
		original TransactionType
		want     TransactionType
		ok       bool
	}{
		{TxBet, TxRollback, true},
		{TxWin, TxRollback, true},
		{TxWithdrawal, TxRollback, true},
		{TxDeposit, "", false},
		{TxAdjustment, "", false},
	}
	for _, tc := range cases {
		t.Run(string(tc.original), func(t *testing.T) {
			got, ok := RollbackTypeMap[tc.original]
			assert.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestIdempotencyKey_Equality(t *testing.T) {
	partnerID := uuid.New()
	a := IdempotencyKey{PartnerID: partnerID, ReferenceID: "ref-1"}
	b := IdempotencyKey{PartnerID: partnerID, ReferenceID: "ref-1"}
	c := IdempotencyKey{PartnerID: partnerID, ReferenceID: "ref-2"}

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestGuardResult_Constructors(t *testing.T) {
	t.Run("allow", func(t *testing.T) {
		r := Allow("rate_limiter")
		assert.True(t, r.Allowed)
		assert.Equal(t, "rate_limiter", r.Guard)
		assert.Empty(t, r.Reason)
	})

	t.Run("deny", func(t *testing.T) {
		r := Deny("circuit_breaker", "open")
		assert.False(t, r.Allowed)
		assert.Equal(t, "circuit_breaker", r.Guard)
		assert.Equal(t, "open", r.Reason)
	})
}
