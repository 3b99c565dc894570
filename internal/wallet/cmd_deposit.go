package wallet

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/musig5344/ocasino/internal/domain"
)

// Deposit credits a wallet's balance. Pattern: lock → idempotency → post.
func (e *Engine) Deposit(ctx context.Context, tx pgx.Tx, params OperationParams) (*CommandResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	wallet, err := e.lockWalletForUpdate(ctx, tx, params.PartnerID, params.PlayerID, params.Currency)
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}

	if result, err := e.checkIdempotency(ctx, tx, wallet, params, domain.TxDeposit); err != nil || result != nil {
		return result, err
	}

	if err := requireWalletCurrency(wallet, params.Currency); err != nil {
		return nil, err
	}
	if err := requireWalletUnlocked(wallet); err != nil {
		return nil, err
	}

	return e.postEntry(ctx, tx, entryParams{
		Wallet:        wallet,
		Type:          domain.TxDeposit,
		Amount:        params.Amount,
		Delta:         params.Amount,
		ReferenceID:   params.ReferenceID,
		Currency:      params.Currency,
		GameID:        params.GameID,
		GameSessionID: params.GameSessionID,
		Metadata:      params.Metadata,
	})
}
