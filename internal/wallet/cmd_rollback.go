package wallet

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/musig5344/ocasino/internal/domain"
)

// Rollback inverts a previously completed bet, win, or withdrawal on the
// same wallet. Its own idempotency is keyed on its own reference-id, not
// the original transaction's (spec §4.4.5).
func (e *Engine) Rollback(ctx context.Context, tx pgx.Tx, params OperationParams) (*CommandResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if params.OriginalReferenceID == "" {
		return nil, domain.ErrValidation("rollback requires an original-reference-id")
	}

	wallet, err := e.lockWalletForUpdate(ctx, tx, params.PartnerID, params.PlayerID, params.Currency)
	if err != nil {
		return nil, fmt.Errorf("rollback: %w", err)
	}

	if result, err := e.checkIdempotency(ctx, tx, wallet, params, domain.TxRollback); err != nil || result != nil {
		return result, err
	}

	if err := requireWalletCurrency(wallet, params.Currency); err != nil {
		return nil, err
	}

	original, err := e.findExistingTransaction(ctx, tx, domain.IdempotencyKey{
		PartnerID:   params.PartnerID,
		ReferenceID: params.OriginalReferenceID,
	})
	if err != nil {
		return nil, err
	}
	if original == nil || original.WalletID != wallet.ID {
		return nil, domain.ErrNotFound("transaction", params.OriginalReferenceID)
	}

	rollbackType, rollbackable := domain.RollbackTypeMap[original.Type]
	if !rollbackable {
		return nil, domain.ErrValidation(fmt.Sprintf("transaction type %s cannot be rolled back", original.Type))
	}
	if original.Status == domain.TxStatusCanceled {
		return nil, domain.ErrAlreadyRolledBack(original.ID.String())
	}
	if original.Status != domain.TxStatusCompleted {
		return nil, domain.ErrValidation(fmt.Sprintf("transaction %s is not completed", original.ID))
	}

	// bet/withdrawal debited the wallet originally, so rollback credits it
	// back; win credited the wallet, so rollback debits it.
	delta := original.Amount
	if original.Type == domain.TxWin {
		delta = -original.Amount
	}

	if err := e.transactions.UpdateStatus(ctx, tx, original.ID, domain.TxStatusCanceled); err != nil {
		return nil, fmt.Errorf("mark original canceled: %w", err)
	}

	originalID := original.ID
	return e.postEntry(ctx, tx, entryParams{
		Wallet:                wallet,
		Type:                  rollbackType,
		Amount:                original.Amount,
		Delta:                 delta,
		ReferenceID:           params.ReferenceID,
		Currency:              original.Currency,
		GameID:                original.GameID,
		GameSessionID:         original.GameSessionID,
		OriginalTransactionID: &originalID,
		Metadata:              params.Metadata,
	})
}
