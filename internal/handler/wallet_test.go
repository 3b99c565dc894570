package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/musig5344/ocasino/internal/auth"
	"github.com/musig5344/ocasino/internal/domain"
	"github.com/musig5344/ocasino/internal/repository"
	"github.com/musig5344/ocasino/internal/wallet"
)

// fakeWalletRepository implements repository.WalletRepository with a single
// pre-seeded wallet, enough to exercise the handler's read path without a
// database.
type fakeWalletRepository struct {
	byPlayer *domain.Wallet
}

func (f *fakeWalletRepository) FindByPlayer(ctx context.Context, db repository.DBTX, partnerID uuid.UUID, playerID, currency string) (*domain.Wallet, error) {
	return f.byPlayer, nil
}
func (f *fakeWalletRepository) LockForUpdate(ctx context.Context, tx pgx.Tx, partnerID uuid.UUID, playerID, currency string) (*domain.Wallet, error) {
	return nil, nil
}
func (f *fakeWalletRepository) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	return nil
}
func (f *fakeWalletRepository) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, delta int64) (*domain.Wallet, error) {
	return nil, nil
}
func (f *fakeWalletRepository) FindByID(ctx context.Context, db repository.DBTX, id uuid.UUID) (*domain.Wallet, error) {
	return nil, nil
}

func chiRequest(method, path, player string, r *http.Request) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("player", player)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rc)
	return r.WithContext(ctx)
}

func withPartnerAndKey(r *http.Request, partner *domain.Partner, key *domain.ApiKey) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), partner, key))
}

func TestGetBalance_RequiresPartner(t *testing.T) {
	h := NewWalletHandler(nil, &fakeWalletRepository{}, nil)

	r := httptest.NewRequest(http.MethodGet, "/wallet/p1/balance?currency=USD", nil)
	r = chiRequest(http.MethodGet, "/wallet/p1/balance", "p1", r)
	w := httptest.NewRecorder()

	h.GetBalance(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetBalance_RejectsInvalidCurrency(t *testing.T) {
	h := NewWalletHandler(nil, &fakeWalletRepository{}, nil)
	partner := &domain.Partner{ID: uuid.New(), Status: domain.PartnerActive}

	r := httptest.NewRequest(http.MethodGet, "/wallet/p1/balance?currency=usd", nil)
	r = chiRequest(http.MethodGet, "/wallet/p1/balance", "p1", r)
	r = withPartnerAndKey(r, partner, &domain.ApiKey{Permissions: []string{"*"}})
	w := httptest.NewRecorder()

	h.GetBalance(w, r)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetBalance_ZeroWhenWalletMissing(t *testing.T) {
	h := NewWalletHandler(nil, &fakeWalletRepository{byPlayer: nil}, nil)
	partner := &domain.Partner{ID: uuid.New(), Status: domain.PartnerActive}

	r := httptest.NewRequest(http.MethodGet, "/wallet/p1/balance?currency=USD", nil)
	r = chiRequest(http.MethodGet, "/wallet/p1/balance", "p1", r)
	r = withPartnerAndKey(r, partner, &domain.ApiKey{Permissions: []string{"*"}})
	w := httptest.NewRecorder()

	h.GetBalance(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balance":"0.00"`)
}

func TestGetBalance_ReturnsFormattedAmount(t *testing.T) {
	wlt := &domain.Wallet{PlayerID: "p1", Currency: "USD", Balance: 1050}
	h := NewWalletHandler(nil, &fakeWalletRepository{byPlayer: wlt}, nil)
	partner := &domain.Partner{ID: uuid.New(), Status: domain.PartnerActive}

	r := httptest.NewRequest(http.MethodGet, "/wallet/p1/balance?currency=USD", nil)
	r = chiRequest(http.MethodGet, "/wallet/p1/balance", "p1", r)
	r = withPartnerAndKey(r, partner, &domain.ApiKey{Permissions: []string{"*"}})
	w := httptest.NewRecorder()

	h.GetBalance(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"balance":"10.50"`)
}

func TestRunOperation_RequiresPartner(t *testing.T) {
	h := NewWalletHandler(nil, &fakeWalletRepository{}, nil)

	r := httptest.NewRequest(http.MethodPost, "/wallet/p1/deposit", nil)
	r = chiRequest(http.MethodPost, "/wallet/p1/deposit", "p1", r)
	w := httptest.NewRecorder()

	h.Deposit(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRunOperation_RejectsMissingPermission(t *testing.T) {
	h := NewWalletHandler(nil, &fakeWalletRepository{}, nil)
	partner := &domain.Partner{ID: uuid.New(), Status: domain.PartnerActive}

	r := httptest.NewRequest(http.MethodPost, "/wallet/p1/deposit", nil)
	r = chiRequest(http.MethodPost, "/wallet/p1/deposit", "p1", r)
	r = withPartnerAndKey(r, partner, &domain.ApiKey{Permissions: []string{"wallet:bet"}})
	w := httptest.NewRecorder()

	h.Deposit(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestToTransactionResponse_FormatsAmounts(t *testing.T) {
	txID := uuid.New()
	result := &wallet.CommandResult{
		Transaction: &domain.Transaction{
			ID:          txID,
			ReferenceID: "ref-1",
			Type:        domain.TxDeposit,
			Amount:      1050,
			Currency:    "USD",
			Status:      domain.TxStatusCompleted,
		},
		Wallet:     &domain.Wallet{Balance: 2500},
		Idempotent: false,
	}

	resp := toTransactionResponse(result)

	assert.Equal(t, txID.String(), resp.TransactionID)
	assert.Equal(t, "10.50", resp.Amount)
	assert.Equal(t, "25.00", resp.Balance)
	assert.False(t, resp.Idempotent)
}

func TestParseOptionalUUID(t *testing.T) {
	t.Run("nil pointer returns nil", func(t *testing.T) {
		id, err := parseOptionalUUID(nil)
		require.NoError(t, err)
		assert.Nil(t, id)
	})

	t.Run("empty string returns nil", func(t *testing.T) {
		empty := ""
		id, err := parseOptionalUUID(&empty)
		require.NoError(t, err)
		assert.Nil(t, id)
	})

	t.Run("valid uuid parses", func(t *testing.T) {
		want := uuid.New()
		s := want.String()
		id, err := parseOptionalUUID(&s)
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Equal(t, want, *id)
	})

	t.Run("invalid uuid errors", func(t *testing.T) {
		bad := "not-a-uuid"
		_, err := parseOptionalUUID(&bad)
		assert.Error(t, err)
	})
}
