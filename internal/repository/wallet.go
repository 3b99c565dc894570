package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/musig5344/ocasino/internal/domain"
	"github.com/musig5344/ocasino/internal/infra"
)

type walletRepo struct{}

// NewWalletRepository returns a pgx-backed WalletRepository.
func NewWalletRepository() WalletRepository {
	return &walletRepo{}
}

func (r *walletRepo) FindByPlayer(ctx context.Context, db DBTX, partnerID uuid.UUID, playerID, currency string) (*domain.Wallet, error) {
	row := db.QueryRow(ctx, `
		SELECT id, player_id, partner_id, currency, balance, active, locked, created_at, updated_at
		FROM wallets WHERE partner_id = $1 AND player_id = $2 AND currency = $3`,
		partnerID, playerID, currency)
	return scanWallet(row)
}

// LockForUpdate locks the wallet row within tx. Returns (nil, nil) if the
// wallet does not yet exist — the caller is responsible for creating it
// (lazily, on the first operation against it) and re-locking.
func (r *walletRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, partnerID uuid.UUID, playerID, currency string) (*domain.Wallet, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, player_id, partner_id, currency, balance, active, locked, created_at, updated_at
		FROM wallets WHERE partner_id = $1 AND player_id = $2 AND currency = $3 FOR UPDATE`,
		partnerID, playerID, currency)
	return scanWallet(row)
}

// Create inserts a new wallet row, tolerating a concurrent first-ever
// operation for the same (partner, player, currency) tuple: two transactions
// can both see no existing row from LockForUpdate and both attempt Create,
// so the loser's insert must no-op on the unique constraint rather than
// fail outright — the caller always re-locks afterward regardless of which
// of the two actually inserted the row.
func (r *walletRepo) Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO wallets (id, player_id, partner_id, currency, balance, active, locked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (partner_id, player_id, currency) DO NOTHING`,
		wallet.ID, wallet.PlayerID, wallet.PartnerID, wallet.Currency,
		infra.Int64ToNumeric(wallet.Balance), wallet.Active, wallet.Locked,
		wallet.CreatedAt, wallet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// UpdateBalance applies delta (positive or negative) server-side and returns
// the row after the update, the same dynamic-arithmetic pattern the teacher
// uses for its multi-column balance update, narrowed to a single column.
func (r *walletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, delta int64) (*domain.Wallet, error) {
	row := tx.QueryRow(ctx, `
		UPDATE wallets SET balance = balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING id, player_id, partner_id, currency, balance, active, locked, created_at, updated_at`,
		infra.Int64ToNumeric(delta), walletID)
	return scanWallet(row)
}

func (r *walletRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Wallet, error) {
	row := db.QueryRow(ctx, `
		SELECT id, player_id, partner_id, currency, balance, active, locked, created_at, updated_at
		FROM wallets WHERE id = $1`, id)
	return scanWallet(row)
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	var balNum pgtype.Numeric
	err := row.Scan(&w.ID, &w.PlayerID, &w.PartnerID, &w.Currency, &balNum, &w.Active, &w.Locked, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	bal, err := infra.NumericToInt64(balNum)
	if err != nil {
		return nil, fmt.Errorf("convert balance: %w", err)
	}
	w.Balance = bal
	return &w, nil
}
