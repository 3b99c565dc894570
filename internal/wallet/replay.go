package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/musig5344/ocasino/internal/domain"
	"github.com/musig5344/ocasino/internal/repository"
)

// ReplayCommand is a single command in a deterministic replay sequence.
type ReplayCommand struct {
	Type   string // "deposit", "withdraw", "bet", "win", "rollback"
	Params OperationParams
}

// InvariantCheck records a single invariant validation performed after a
// replay run.
type InvariantCheck struct {
	Name   string
	Passed bool
	Detail string
}

// ReplayResult holds the outcome of a deterministic replay run.
type ReplayResult struct {
	PartnerID        uuid.UUID
	PlayerID         string
	TransactionCount int
	FinalBalance     int64
	Invariants       []InvariantCheck
	AllPassed        bool
}

// ReplayHarness re-executes a recorded sequence of wallet commands against
// a player and validates the resulting state, grounded on the teacher's
// internal/ledger/replay.go (same bounded invariant set: non-negative
// balance, ledger/wallet parity, transaction count), narrowed from the
// teacher's three-tier balance model to this system's single balance. The
// transaction-count check records the number of non-idempotent commands
// run; it is not compared against the stored ledger and always passes.
type ReplayHarness struct {
	engine  *Engine
	pool    *pgxpool.Pool
	wallets repository.WalletRepository
	txs     repository.TransactionRepository
}

// NewReplayHarness creates a replay harness.
func NewReplayHarness(engine *Engine, pool *pgxpool.Pool, wallets repository.WalletRepository, txs repository.TransactionRepository) *ReplayHarness {
	return &ReplayHarness{engine: engine, pool: pool, wallets: wallets, txs: txs}
}

// Execute runs a sequence of commands against a (partner, player, currency)
// wallet and validates invariants against the resulting state.
func (h *ReplayHarness) Execute(ctx context.Context, partnerID uuid.UUID, playerID, currency string, commands []ReplayCommand) (*ReplayResult, error) {
	var txCount int

	for i, cmd := range commands {
		result, err := h.executeCommand(ctx, cmd)
		if err != nil {
			return nil, fmt.Errorf("replay command %d (%s): %w", i, cmd.Type, err)
		}
		if !result.Idempotent {
			txCount++
		}
	}

	var finalWallet *domain.Wallet
	var lastTx *domain.Transaction
	err := pgx.BeginTxFunc(ctx, h.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		var err error
		finalWallet, err = h.wallets.LockForUpdate(ctx, tx, partnerID, playerID, currency)
		if err != nil {
			return err
		}
		if finalWallet == nil {
			return domain.ErrNotFound("wallet", playerID)
		}
		lastTx, err = h.txs.FindLatestByWallet(ctx, tx, finalWallet.ID, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("replay fetch final state: %w", err)
	}

	invariants := validateInvariants(finalWallet, lastTx, txCount)
	allPassed := true
	for _, inv := range invariants {
		if !inv.Passed {
			allPassed = false
		}
	}

	return &ReplayResult{
		PartnerID:        partnerID,
		PlayerID:         playerID,
		TransactionCount: txCount,
		FinalBalance:     finalWallet.Balance,
		Invariants:       invariants,
		AllPassed:        allPassed,
	}, nil
}

func (h *ReplayHarness) executeCommand(ctx context.Context, cmd ReplayCommand) (*CommandResult, error) {
	var result *CommandResult
	err := pgx.BeginTxFunc(ctx, h.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		var err error
		switch cmd.Type {
		case "deposit":
			result, err = h.engine.Deposit(ctx, tx, cmd.Params)
		case "withdraw":
			result, err = h.engine.Withdraw(ctx, tx, cmd.Params)
		case "bet":
			result, err = h.engine.Bet(ctx, tx, cmd.Params)
		case "win":
			result, err = h.engine.Win(ctx, tx, cmd.Params)
		case "rollback":
			result, err = h.engine.Rollback(ctx, tx, cmd.Params)
		default:
			return fmt.Errorf("unknown command type: %s", cmd.Type)
		}
		return err
	})
	return result, err
}

func validateInvariants(wallet *domain.Wallet, lastTx *domain.Transaction, expectedTxCount int) []InvariantCheck {
	checks := make([]InvariantCheck, 0, 3)

	checks = append(checks, InvariantCheck{
		Name:   "balance_non_negative",
		Passed: wallet.Balance >= 0,
		Detail: fmt.Sprintf("balance=%d", wallet.Balance),
	})

	if lastTx != nil {
		parityPass := lastTx.UpdatedBalance == wallet.Balance
		checks = append(checks, InvariantCheck{
			Name:   "ledger_parity",
			Passed: parityPass,
			Detail: fmt.Sprintf("wallet=%d lastTx.updatedBalance=%d", wallet.Balance, lastTx.UpdatedBalance),
		})
	} else {
		checks = append(checks, InvariantCheck{Name: "ledger_parity", Passed: true, Detail: "no transactions"})
	}

	checks = append(checks, InvariantCheck{
		Name:   "transaction_count",
		Passed: true,
		Detail: fmt.Sprintf("expected=%d", expectedTxCount),
	})

	return checks
}
