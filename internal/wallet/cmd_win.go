package wallet

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/musig5344/ocasino/internal/domain"
)

// Win credits a wallet's balance for a payout. Requires a game-id and may
// reference the winning bet by original-transaction-id (spec §4.4.5).
func (e *Engine) Win(ctx context.Context, tx pgx.Tx, params OperationParams) (*CommandResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if params.GameID == nil || *params.GameID == "" {
		return nil, domain.ErrValidation("win requires a game-id")
	}

	wallet, err := e.lockWalletForUpdate(ctx, tx, params.PartnerID, params.PlayerID, params.Currency)
	if err != nil {
		return nil, fmt.Errorf("win: %w", err)
	}

	if result, err := e.checkIdempotency(ctx, tx, wallet, params, domain.TxWin); err != nil || result != nil {
		return result, err
	}

	if err := requireWalletCurrency(wallet, params.Currency); err != nil {
		return nil, err
	}

	return e.postEntry(ctx, tx, entryParams{
		Wallet:                wallet,
		Type:                  domain.TxWin,
		Amount:                params.Amount,
		Delta:                 params.Amount,
		ReferenceID:           params.ReferenceID,
		Currency:              params.Currency,
		GameID:                params.GameID,
		GameSessionID:         params.GameSessionID,
		OriginalTransactionID: params.OriginalTransactionID,
		Metadata:              params.Metadata,
	})
}
