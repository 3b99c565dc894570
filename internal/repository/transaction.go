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

type transactionRepo struct{}

// NewTransactionRepository returns a pgx-backed TransactionRepository.
func NewTransactionRepository() TransactionRepository {
	return &transactionRepo{}
}

func (r *transactionRepo) FindExisting(ctx context.Context, db DBTX, key domain.IdempotencyKey, decrypt func(string) (int64, error)) (*domain.Transaction, error) {
	row := db.QueryRow(ctx, `
		SELECT id, reference_id, wallet_id, partner_id, player_id, type, amount_encrypted, currency, status,
		       original_balance, updated_balance, original_transaction_id, game_id, game_session_id,
		       metadata, created_at, updated_at
		FROM transactions
		WHERE partner_id = $1 AND reference_id = $2`,
		key.PartnerID, key.ReferenceID)
	return scanTransaction(row, decrypt)
}

// Insert writes a ledger entry. txn.Amount is ignored in favor of the
// caller-supplied encrypted blob; the decrypted value never reaches the
// database.
func (r *transactionRepo) Insert(ctx context.Context, tx pgx.Tx, txn *domain.Transaction, amountBlob string) error {
	meta := txn.Metadata
	if meta == nil {
		meta = []byte(`{}`)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO transactions
		  (id, reference_id, wallet_id, partner_id, player_id, type, amount_encrypted, currency, status,
		   original_balance, updated_balance, original_transaction_id, game_id, game_session_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`,
		txn.ID, txn.ReferenceID, txn.WalletID, txn.PartnerID, txn.PlayerID, string(txn.Type),
		amountBlob, txn.Currency, string(txn.Status),
		infra.Int64ToNumeric(txn.OriginalBalance), infra.Int64ToNumeric(txn.UpdatedBalance),
		txn.OriginalTransactionID, txn.GameID, txn.GameSessionID, meta,
	)
	if err := row.Scan(&txn.CreatedAt, &txn.UpdatedAt); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *transactionRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID, decrypt func(string) (int64, error)) (*domain.Transaction, error) {
	row := db.QueryRow(ctx, `
		SELECT id, reference_id, wallet_id, partner_id, player_id, type, amount_encrypted, currency, status,
		       original_balance, updated_balance, original_transaction_id, game_id, game_session_id,
		       metadata, created_at, updated_at
		FROM transactions WHERE id = $1`, id)
	return scanTransaction(row, decrypt)
}

func (r *transactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	_, err := tx.Exec(ctx, `UPDATE transactions SET status = $1, updated_at = now() WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	return nil
}

func (r *transactionRepo) FindLatestByWallet(ctx context.Context, db DBTX, walletID uuid.UUID, decrypt func(string) (int64, error)) (*domain.Transaction, error) {
	row := db.QueryRow(ctx, `
		SELECT id, reference_id, wallet_id, partner_id, player_id, type, amount_encrypted, currency, status,
		       original_balance, updated_balance, original_transaction_id, game_id, game_session_id,
		       metadata, created_at, updated_at
		FROM transactions WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT 1`, walletID)
	return scanTransaction(row, decrypt)
}

func (r *transactionRepo) RecentByPlayer(ctx context.Context, db DBTX, partnerID uuid.UUID, playerID string, since interface{}, decrypt func(string) (int64, error)) ([]domain.Transaction, error) {
	rows, err := db.Query(ctx, `
		SELECT id, reference_id, wallet_id, partner_id, player_id, type, amount_encrypted, currency, status,
		       original_balance, updated_balance, original_transaction_id, game_id, game_session_id,
		       metadata, created_at, updated_at
		FROM transactions
		WHERE partner_id = $1 AND player_id = $2 AND created_at >= $3
		ORDER BY created_at DESC`,
		partnerID, playerID, since)
	if err != nil {
		return nil, fmt.Errorf("query recent transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows, decrypt)
		if err != nil {
			return nil, err
		}
		out = append(out, *txn)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row, decrypt func(string) (int64, error)) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amountBlob string
	var originalNum, updatedNum pgtype.Numeric
	var txType, status string

	err := row.Scan(
		&tx.ID, &tx.ReferenceID, &tx.WalletID, &tx.PartnerID, &tx.PlayerID, &txType, &amountBlob,
		&tx.Currency, &status, &originalNum, &updatedNum,
		&tx.OriginalTransactionID, &tx.GameID, &tx.GameSessionID, &tx.Metadata,
		&tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	tx.Type = domain.TransactionType(txType)
	tx.Status = domain.TransactionStatus(status)

	var convErr error
	tx.OriginalBalance, convErr = infra.NumericToInt64(originalNum)
	if convErr != nil {
		return nil, fmt.Errorf("convert original_balance: %w", convErr)
	}
	tx.UpdatedBalance, convErr = infra.NumericToInt64(updatedNum)
	if convErr != nil {
		return nil, fmt.Errorf("convert updated_balance: %w", convErr)
	}

	if decrypt != nil {
		amount, err := decrypt(amountBlob)
		if err != nil {
			return nil, fmt.Errorf("decrypt amount: %w", err)
		}
		tx.Amount = amount
	}

	return &tx, nil
}
