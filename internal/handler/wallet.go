package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/musig5344/ocasino/internal/auth"
	"github.com/musig5344/ocasino/internal/domain"
	"github.com/musig5344/ocasino/internal/eventbus"
	"github.com/musig5344/ocasino/internal/provider"
	"github.com/musig5344/ocasino/internal/repository"
	"github.com/musig5344/ocasino/internal/wallet"
)

// WalletHandler exposes the five wallet operations plus a balance read
// (spec §6). Every operation owns its own transaction: the wallet engine's
// command methods take a pgx.Tx directly rather than a pool, so the
// handler is the layer that begins, commits, and rolls back around each
// call — mirroring how the teacher's handler layer sits directly on top of
// its ledger engine.
// defaultOperationDeadline is used when no deadline has been configured via
// WithOperationDeadline, so a bare NewWalletHandler (as wallet_test.go
// builds) still bounds its operations instead of running unbounded.
const defaultOperationDeadline = 5 * time.Second

type WalletHandler struct {
	pool       *pgxpool.Pool
	wallets    repository.WalletRepository
	engine     *wallet.Engine
	settlement *provider.HTTPAdapter
	bus        *eventbus.Bus
	deadline   time.Duration
	logger     *slog.Logger
}

// NewWalletHandler builds a wallet handler.
func NewWalletHandler(pool *pgxpool.Pool, wallets repository.WalletRepository, engine *wallet.Engine) *WalletHandler {
	return &WalletHandler{pool: pool, wallets: wallets, engine: engine, deadline: defaultOperationDeadline, logger: slog.Default()}
}

// WithOperationDeadline sets the per-request deadline every wallet
// operation must complete (including commit) under (spec §5/§6:
// OPERATION_DEADLINE, default 5s) — exceeding it rolls back the
// transaction and fails the request with deadline-exceeded.
func (h *WalletHandler) WithOperationDeadline(d time.Duration) *WalletHandler {
	if d > 0 {
		h.deadline = d
	}
	return h
}

// WithSettlementNotifier attaches the outbound game-provider adapter, used
// to notify the provider after a bet or win commits. Optional: a handler
// with no notifier configured simply skips the notification step.
func (h *WalletHandler) WithSettlementNotifier(settlement *provider.HTTPAdapter, logger *slog.Logger) *WalletHandler {
	h.settlement = settlement
	h.logger = logger
	return h
}

// WithEventBus attaches the in-process event bus every committed wallet
// transaction is published to (spec §4.5/§4.6: this is how the AML analyzer
// hears about new transactions). Optional for the same reason
// WithSettlementNotifier is: wallet_test.go's bare NewWalletHandler calls
// must keep compiling and running without one.
func (h *WalletHandler) WithEventBus(bus *eventbus.Bus) *WalletHandler {
	h.bus = bus
	return h
}

// operationRequest is the common request body shape across deposit,
// withdraw, bet, win and rollback; fields not relevant to a given
// operation are simply left unset by the caller.
type operationRequest struct {
	ReferenceID           string          `json:"referenceId"`
	Amount                string          `json:"amount"`
	Currency              string          `json:"currency"`
	GameID                *string         `json:"gameId,omitempty"`
	GameSessionID         *string         `json:"gameSessionId,omitempty"`
	RoundID               *string         `json:"roundId,omitempty"`
	OriginalTransactionID *string         `json:"originalTransactionId,omitempty"`
	OriginalReferenceID   string          `json:"originalReferenceId,omitempty"`
	Metadata              json.RawMessage `json:"metadata,omitempty"`
}

// transactionResponse is what every wallet operation returns: the recorded
// transaction and the wallet's resulting balance, amounts rendered back as
// decimal strings.
type transactionResponse struct {
	TransactionID string `json:"transactionId"`
	ReferenceID   string `json:"referenceId"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Balance       string `json:"balance"`
	Status        string `json:"status"`
	Idempotent    bool   `json:"idempotent"`
	CreatedAt     string `json:"createdAt"`
}

type balanceResponse struct {
	PlayerID string `json:"playerId"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

// GetBalance handles GET /wallet/{player}/balance?currency=USD.
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	partner := auth.PartnerFromContext(r.Context())
	if partner == nil {
		RespondError(w, domain.ErrUnauthenticated("no partner in context"))
		return
	}
	playerID := chi.URLParam(r, "player")
	currency := r.URL.Query().Get("currency")
	if err := domain.ValidateCurrency(currency); err != nil {
		RespondError(w, domain.ErrValidation(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deadline)
	defer cancel()

	w2, err := h.wallets.FindByPlayer(ctx, h.pool, partner.ID, playerID, currency)
	if err != nil {
		RespondError(w, deadlineAwareError("find wallet", ctx, err))
		return
	}
	if w2 == nil {
		RespondSuccess(w, http.StatusOK, balanceResponse{
			PlayerID: playerID,
			Currency: currency,
			Balance:  FormatMinorUnits(0, domain.ScaleOf(currency)),
		}, "")
		return
	}

	RespondSuccess(w, http.StatusOK, balanceResponse{
		PlayerID: playerID,
		Currency: w2.Currency,
		Balance:  FormatMinorUnits(w2.Balance, domain.ScaleOf(w2.Currency)),
	}, "")
}

// Deposit handles POST /wallet/{player}/deposit.
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, "wallet:deposit", true, false, func(ctx context.Context, tx pgx.Tx, params wallet.OperationParams) (*wallet.CommandResult, error) {
		return h.engine.Deposit(ctx, tx, params)
	})
}

// Withdraw handles POST /wallet/{player}/withdraw.
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, "wallet:withdraw", true, false, func(ctx context.Context, tx pgx.Tx, params wallet.OperationParams) (*wallet.CommandResult, error) {
		return h.engine.Withdraw(ctx, tx, params)
	})
}

// Bet handles POST /wallet/{player}/bet. A committed bet notifies the game
// provider's settlement webhook (best-effort: notification failure never
// unwinds the already-committed ledger write).
func (h *WalletHandler) Bet(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, "wallet:bet", true, true, func(ctx context.Context, tx pgx.Tx, params wallet.OperationParams) (*wallet.CommandResult, error) {
		return h.engine.Bet(ctx, tx, params)
	})
}

// Win handles POST /wallet/{player}/win, notifying the provider the same
// way Bet does.
func (h *WalletHandler) Win(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, "wallet:win", true, true, func(ctx context.Context, tx pgx.Tx, params wallet.OperationParams) (*wallet.CommandResult, error) {
		return h.engine.Win(ctx, tx, params)
	})
}

// Rollback handles POST /wallet/{player}/rollback. Unlike the other four
// operations, its wire body carries no amount — the amount being reversed
// comes from the original transaction once the engine loads it — but it
// still needs a currency to know which (partner, player, currency) wallet
// to lock before that lookup happens, so runOperation is told not to parse
// an amount off the wire for this one.
func (h *WalletHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	h.runOperation(w, r, "wallet:rollback", false, false, func(ctx context.Context, tx pgx.Tx, params wallet.OperationParams) (*wallet.CommandResult, error) {
		return h.engine.Rollback(ctx, tx, params)
	})
}

// operationFunc is one of the five engine commands, already closed over
// its receiver so runOperation stays identical across all of them.
type operationFunc func(ctx context.Context, tx pgx.Tx, params wallet.OperationParams) (*wallet.CommandResult, error)

// runOperation implements the shared request lifecycle every wallet
// endpoint follows: resolve the authenticated partner, decode and parse
// the body, open a transaction, run the engine command, commit on
// success / roll back on any error, and render the result. notifyProvider
// fires the best-effort game-provider settlement webhook after commit
// (bet/win only); it never affects the response either way.
func (h *WalletHandler) runOperation(w http.ResponseWriter, r *http.Request, permission string, requireAmount, notifyProvider bool, op operationFunc) {
	partner := auth.PartnerFromContext(r.Context())
	if partner == nil {
		RespondError(w, domain.ErrUnauthenticated("no partner in context"))
		return
	}
	key := auth.ApiKeyFromContext(r.Context())
	if key == nil || !auth.HasPermission(key.Permissions, permission) {
		RespondError(w, domain.ErrPermissionDenied(permission))
		return
	}

	playerID := chi.URLParam(r, "player")
	if playerID == "" {
		RespondError(w, domain.ErrValidation("player is required"))
		return
	}

	var req operationRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("malformed request body"))
		return
	}
	if err := domain.ValidateCurrency(req.Currency); err != nil {
		RespondError(w, domain.ErrValidation(err.Error()))
		return
	}
	scale := domain.ScaleOf(req.Currency)

	// rollback carries no amount on the wire: the amount reversed comes
	// from the original transaction the engine loads internally.
	amount := int64(1)
	if requireAmount {
		if err := domain.ValidateAmountScale(req.Amount, scale); err != nil {
			RespondError(w, domain.ErrInvalidAmount(err.Error()))
			return
		}
		parsed, err := ParseDecimalAmount(req.Amount, scale)
		if err != nil {
			RespondError(w, domain.ErrInvalidAmount(err.Error()))
			return
		}
		amount = parsed
	}

	originalTxID, err := parseOptionalUUID(req.OriginalTransactionID)
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid originalTransactionId"))
		return
	}

	params := wallet.OperationParams{
		PartnerID:             partner.ID,
		PlayerID:              playerID,
		ReferenceID:           req.ReferenceID,
		Amount:                amount,
		Currency:              req.Currency,
		GameID:                req.GameID,
		GameSessionID:         req.GameSessionID,
		RoundID:               req.RoundID,
		OriginalTransactionID: originalTxID,
		OriginalReferenceID:   req.OriginalReferenceID,
		Metadata:              req.Metadata,
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deadline)
	defer cancel()

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		RespondError(w, deadlineAwareError("begin transaction", ctx, err))
		return
	}
	defer tx.Rollback(ctx)

	result, err := op(ctx, tx, params)
	if err != nil {
		RespondError(w, deadlineAwareError("", ctx, err))
		return
	}
	if err := tx.Commit(ctx); err != nil {
		RespondError(w, deadlineAwareError("commit transaction", ctx, err))
		return
	}

	if h.bus != nil {
		h.bus.Publish(ctx, domain.NewWalletTransactionCreatedEvent(result.Transaction))
	}
	if notifyProvider {
		h.notifySettlement(result)
	}

	RespondSuccess(w, http.StatusOK, toTransactionResponse(result), "")
}

// deadlineAwareError maps a failure to deadline-exceeded whenever the
// per-request operation deadline (spec §5/§6) is what actually ended the
// context, regardless of which call surfaced the error first; msg wraps
// non-deadline errors that didn't already come back as a domain.AppError
// (an empty msg passes the op's own error straight through).
func deadlineAwareError(msg string, ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return domain.ErrDeadlineExceeded()
	}
	if msg == "" {
		return err
	}
	return domain.ErrInternal(msg, err)
}

// notifySettlement posts the committed bet/win to the game provider's
// settlement webhook in the background: the HTTP response to the partner
// must not wait on, or fail because of, a downstream provider outage.
func (h *WalletHandler) notifySettlement(result *wallet.CommandResult) {
	if h.settlement == nil {
		return
	}
	tx := result.Transaction
	notification := provider.SettlementNotification{
		TransactionID: tx.ID.String(),
		ReferenceID:   tx.ReferenceID,
		PlayerID:      tx.PlayerID,
		Type:          string(tx.Type),
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Balance:       result.Wallet.Balance,
	}
	if tx.GameID != nil {
		notification.GameID = *tx.GameID
	}
	if tx.GameSessionID != nil {
		notification.RoundID = *tx.GameSessionID
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := h.settlement.NotifySettlement(ctx, notification); err != nil {
			h.logger.Error("settlement notification failed",
				"transaction_id", notification.TransactionID, "error", err)
		}
	}()
}

func toTransactionResponse(result *wallet.CommandResult) transactionResponse {
	scale := domain.ScaleOf(result.Transaction.Currency)
	return transactionResponse{
		TransactionID: result.Transaction.ID.String(),
		ReferenceID:   result.Transaction.ReferenceID,
		Type:          string(result.Transaction.Type),
		Amount:        FormatMinorUnits(result.Transaction.Amount, scale),
		Currency:      result.Transaction.Currency,
		Balance:       FormatMinorUnits(result.Wallet.Balance, scale),
		Status:        string(result.Transaction.Status),
		Idempotent:    result.Idempotent,
		CreatedAt:     result.Transaction.CreatedAt.Format(time.RFC3339),
	}
}

func parseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
