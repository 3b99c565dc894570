package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/musig5344/ocasino/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// WalletRepository provides access to the wallets table.
type WalletRepository interface {
	// FindByPlayer looks up a wallet by its natural key, no lock held.
	FindByPlayer(ctx context.Context, db DBTX, partnerID uuid.UUID, playerID, currency string) (*domain.Wallet, error)

	// LockForUpdate acquires a row-level lock (SELECT ... FOR UPDATE).
	// Returns (nil, nil) if the wallet does not exist yet.
	LockForUpdate(ctx context.Context, tx pgx.Tx, partnerID uuid.UUID, playerID, currency string) (*domain.Wallet, error)

	// Create inserts a new wallet, created lazily by the first operation against it.
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error

	// UpdateBalance applies delta using server-side arithmetic (Audit #1
	// pattern) and returns the row after the update.
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, delta int64) (*domain.Wallet, error)

	// FindByID returns a wallet by its surrogate key.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Wallet, error)
}

// TransactionRepository provides access to the transactions table.
type TransactionRepository interface {
	// FindExisting checks the idempotency index for a duplicate operation.
	// decrypt may be nil when only existence (not the amount) matters.
	FindExisting(ctx context.Context, db DBTX, key domain.IdempotencyKey, decrypt func(string) (int64, error)) (*domain.Transaction, error)

	// Insert creates a new ledger entry. amountBlob is the already-encrypted
	// amount; the caller (wallet engine) owns encryption so the repository
	// never sees plaintext.
	Insert(ctx context.Context, tx pgx.Tx, txn *domain.Transaction, amountBlob string) error

	// FindByID returns a transaction by ID, decrypting its amount.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID, decrypt func(string) (int64, error)) (*domain.Transaction, error)

	// UpdateStatus transitions a transaction's status, used by rollback to
	// mark the original entry canceled.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error

	// FindLatestByWallet returns the most recently written transaction for a
	// wallet, used by the replay harness to check ledger/balance parity.
	FindLatestByWallet(ctx context.Context, db DBTX, walletID uuid.UUID, decrypt func(string) (int64, error)) (*domain.Transaction, error)

	// RecentByPlayer returns the player's transactions since a cutoff,
	// newest first, feeding the AML analyzer's factor evaluators.
	RecentByPlayer(ctx context.Context, db DBTX, partnerID uuid.UUID, playerID string, since interface{}, decrypt func(string) (int64, error)) ([]domain.Transaction, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event within the caller's transaction.
	Insert(ctx context.Context, tx pgx.Tx, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events for the outbox poller.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxDraft, error)

	// MarkPublished stamps publishedAt on the given events by event ID.
	MarkPublished(ctx context.Context, db DBTX, ids []uuid.UUID) error
}

// PartnerRepository provides access to the partners table.
type PartnerRepository interface {
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Partner, error)
	FindByCode(ctx context.Context, db DBTX, code string) (*domain.Partner, error)
}

// ApiKeyRepository provides access to the api_keys table.
type ApiKeyRepository interface {
	// FindByHash looks up a key by its stored hash (the lookup path every
	// authenticated request takes, behind the cache).
	FindByHash(ctx context.Context, db DBTX, keyHash string) (*domain.ApiKey, error)

	// TouchLastUsed bumps last_used_at; callers rate-limit this themselves
	// (spec allows at most once per hour per key) before calling it.
	TouchLastUsed(ctx context.Context, db DBTX, id uuid.UUID) error
}

// AMLRepository provides access to AML risk profiles and alerts.
type AMLRepository interface {
	FindProfile(ctx context.Context, db DBTX, partnerID uuid.UUID, playerID string) (*domain.AMLRiskProfile, error)
	UpsertProfile(ctx context.Context, db DBTX, profile *domain.AMLRiskProfile) error
	InsertAlert(ctx context.Context, tx pgx.Tx, alert *domain.AMLAlert) error
}
