// Package wallet implements the transactional wallet engine: deposit,
// withdraw, bet, win and rollback, each running the lock → idempotency →
// post sequence inside a single database transaction. Grounded on the
// teacher's internal/ledger package (Engine.LockPlayerForUpdate,
// Engine.FindExistingTransaction, Engine.PostLedgerEntry and the
// one-file-per-command layout), retargeted from a three-column
// real/bonus/reserved balance model to the single-balance model this
// system's wallets use.
package wallet

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	icrypto "github.com/musig5344/ocasino/internal/crypto"
	"github.com/musig5344/ocasino/internal/domain"
	"github.com/musig5344/ocasino/internal/repository"
)

// Engine provides the foundational wallet operations: a row-level lock, an
// idempotency check, and the atomic post-entry write. The five commands
// (deposit, withdraw, bet, win, rollback) all delegate to these three.
type Engine struct {
	wallets      repository.WalletRepository
	transactions repository.TransactionRepository
	outbox       repository.OutboxRepository
	cipher       *icrypto.AmountCipher
}

// NewEngine builds a wallet engine with the given repositories and the
// amount cipher used to encrypt/decrypt transaction amounts at rest.
func NewEngine(wallets repository.WalletRepository, transactions repository.TransactionRepository, outbox repository.OutboxRepository, cipher *icrypto.AmountCipher) *Engine {
	return &Engine{wallets: wallets, transactions: transactions, outbox: outbox, cipher: cipher}
}

// CommandResult is what every wallet command returns: the stored
// transaction, the wallet's balance after the operation, and whether the
// result came from an idempotent replay rather than a fresh write.
type CommandResult struct {
	Transaction *domain.Transaction
	Wallet      *domain.Wallet
	Idempotent  bool
}

// OperationParams is the common contract every wallet operation accepts
// (spec §4.4.1): partner-id comes from the auth context upstream, the rest
// travels with the request.
type OperationParams struct {
	PartnerID             uuid.UUID
	PlayerID              string
	ReferenceID           string
	Amount                int64
	Currency              string
	GameID                *string
	GameSessionID         *string
	RoundID               *string
	OriginalTransactionID *uuid.UUID
	OriginalReferenceID   string
	Metadata              []byte
}

func (p OperationParams) idempotencyKey() domain.IdempotencyKey {
	return domain.IdempotencyKey{PartnerID: p.PartnerID, ReferenceID: p.ReferenceID}
}

// validate applies the common contract checks (§4.4.1/§4.4.4) shared by
// every operation before any DB work starts.
func (p OperationParams) validate() error {
	if err := domain.ValidateReferenceID(p.ReferenceID); err != nil {
		return domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateCurrency(p.Currency); err != nil {
		return domain.ErrValidation(err.Error())
	}
	if err := domain.ValidatePositiveAmount(p.Amount); err != nil {
		return domain.ErrInvalidAmount(err.Error())
	}
	return nil
}

// lockWalletForUpdate acquires a row lock on the (partner, player, currency)
// wallet, lazily creating it if this is the first operation against it.
// Must be called within tx.
func (e *Engine) lockWalletForUpdate(ctx context.Context, tx pgx.Tx, partnerID uuid.UUID, playerID, currency string) (*domain.Wallet, error) {
	w, err := e.wallets.LockForUpdate(ctx, tx, partnerID, playerID, currency)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	if w != nil {
		return w, nil
	}

	now := time.Now()
	created := &domain.Wallet{
		ID:        uuid.New(),
		PlayerID:  playerID,
		PartnerID: partnerID,
		Currency:  currency,
		Balance:   0,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.wallets.Create(ctx, tx, created); err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	// Re-lock so the row we return is held for the remainder of the
	// transaction exactly like a pre-existing wallet would be.
	w, err = e.wallets.LockForUpdate(ctx, tx, partnerID, playerID, currency)
	if err != nil {
		return nil, fmt.Errorf("lock newly created wallet: %w", err)
	}
	return w, nil
}

// findExistingTransaction checks the idempotency index for a duplicate
// request, decrypting its amount so callers can compare against the
// incoming request (spec §4.4.2).
func (e *Engine) findExistingTransaction(ctx context.Context, tx pgx.Tx, key domain.IdempotencyKey) (*domain.Transaction, error) {
	existing, err := e.transactions.FindExisting(ctx, tx, key, e.decryptAmount)
	if err != nil {
		return nil, fmt.Errorf("find existing transaction: %w", err)
	}
	return existing, nil
}

// checkIdempotency implements spec §4.4.2: a matching replay returns the
// stored result, a diverging one is an idempotency-conflict, and no match
// means the caller should proceed with a fresh write.
func (e *Engine) checkIdempotency(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, params OperationParams, txType domain.TransactionType) (*CommandResult, error) {
	existing, err := e.findExistingTransaction(ctx, tx, params.idempotencyKey())
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	// A rollback request carries no amount of its own; its stored amount is
	// the original transaction's, so amount is not compared for rollbacks.
	amountDiffers := txType != domain.TxRollback && existing.Amount != params.Amount
	if existing.Type != txType || amountDiffers || existing.Currency != params.Currency || existing.PlayerID != params.PlayerID {
		return nil, domain.ErrIdempotencyConflict(params.ReferenceID)
	}
	return &CommandResult{Transaction: existing, Wallet: wallet, Idempotent: true}, nil
}

// entryParams describes a single ledger write: the signed delta to apply
// to the wallet balance and the transaction row to record alongside it.
type entryParams struct {
	Wallet                *domain.Wallet
	Type                  domain.TransactionType
	Amount                int64
	Delta                 int64
	ReferenceID           string
	Currency              string
	GameID                *string
	GameSessionID         *string
	OriginalTransactionID *uuid.UUID
	Metadata              []byte
}

// postEntry is the core write primitive every command delegates to (spec
// §4.4.3 steps 4-6): compute the new balance, write the encrypted
// transaction row with its before/after snapshot, update the wallet, and
// stage the wallet.transaction.created outbox event — all within tx.
func (e *Engine) postEntry(ctx context.Context, tx pgx.Tx, p entryParams) (*CommandResult, error) {
	amountBlob, err := e.encryptAmount(p.Amount)
	if err != nil {
		return nil, fmt.Errorf("encrypt amount: %w", err)
	}

	updatedWallet, err := e.wallets.UpdateBalance(ctx, tx, p.Wallet.ID, p.Delta)
	if err != nil {
		return nil, fmt.Errorf("update wallet balance: %w", err)
	}

	meta := p.Metadata
	if meta == nil {
		meta = []byte(`{}`)
	}

	entry := &domain.Transaction{
		ID:                    uuid.New(),
		ReferenceID:           p.ReferenceID,
		WalletID:              p.Wallet.ID,
		PartnerID:             p.Wallet.PartnerID,
		PlayerID:              p.Wallet.PlayerID,
		Type:                  p.Type,
		Amount:                p.Amount,
		Currency:              p.Currency,
		Status:                domain.TxStatusCompleted,
		OriginalBalance:       p.Wallet.Balance,
		UpdatedBalance:        updatedWallet.Balance,
		OriginalTransactionID: p.OriginalTransactionID,
		GameID:                p.GameID,
		GameSessionID:         p.GameSessionID,
		Metadata:              meta,
	}

	if err := e.transactions.Insert(ctx, tx, entry, amountBlob); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	event := domain.NewWalletTransactionCreatedEvent(entry)
	if err := e.outbox.Insert(ctx, tx, event); err != nil {
		return nil, fmt.Errorf("insert outbox event: %w", err)
	}

	return &CommandResult{Transaction: entry, Wallet: updatedWallet}, nil
}

// encryptAmount seals a minor-unit amount for storage. Amounts are encoded
// as their decimal string form before sealing so the plaintext is portable
// and self-describing if ever inspected outside this package.
func (e *Engine) encryptAmount(amount int64) (string, error) {
	return e.cipher.Encrypt([]byte(strconv.FormatInt(amount, 10)))
}

// decryptAmount reverses encryptAmount. Passed down to the repository layer
// as the callback used to decrypt amounts on read.
func (e *Engine) decryptAmount(blob string) (int64, error) {
	plaintext, err := e.cipher.Decrypt(blob)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(plaintext), 10, 64)
}

// requireWalletCurrency enforces spec §4.4.4: the operation's currency
// must match the wallet's currency.
func requireWalletCurrency(wallet *domain.Wallet, currency string) error {
	if wallet.Currency != currency {
		return domain.ErrCurrencyMismatch(currency, wallet.Currency)
	}
	return nil
}

// requireWalletUnlocked enforces the "wallet not locked" precondition shared
// by deposit, withdraw and bet (spec §4.4.5).
func requireWalletUnlocked(wallet *domain.Wallet) error {
	if wallet.Locked {
		return domain.ErrWalletLocked(wallet.ID.String())
	}
	return nil
}
