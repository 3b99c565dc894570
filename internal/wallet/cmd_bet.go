package wallet

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/musig5344/ocasino/internal/domain"
)

// Bet debits a wallet's balance for a wager. Requires a game-id; a
// round-id, if supplied, is carried in the transaction's metadata rather
// than as a first-class column (spec §4.4.5).
func (e *Engine) Bet(ctx context.Context, tx pgx.Tx, params OperationParams) (*CommandResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if params.GameID == nil || *params.GameID == "" {
		return nil, domain.ErrValidation("bet requires a game-id")
	}

	wallet, err := e.lockWalletForUpdate(ctx, tx, params.PartnerID, params.PlayerID, params.Currency)
	if err != nil {
		return nil, fmt.Errorf("bet: %w", err)
	}

	if result, err := e.checkIdempotency(ctx, tx, wallet, params, domain.TxBet); err != nil || result != nil {
		return result, err
	}

	if err := requireWalletCurrency(wallet, params.Currency); err != nil {
		return nil, err
	}
	if err := requireWalletUnlocked(wallet); err != nil {
		return nil, err
	}
	if wallet.Balance < params.Amount {
		return nil, domain.ErrInsufficientFunds()
	}

	meta := params.Metadata
	if params.RoundID != nil && *params.RoundID != "" {
		meta = mergeMeta(meta, map[string]interface{}{"roundId": *params.RoundID})
	}

	return e.postEntry(ctx, tx, entryParams{
		Wallet:        wallet,
		Type:          domain.TxBet,
		Amount:        params.Amount,
		Delta:         -params.Amount,
		ReferenceID:   params.ReferenceID,
		Currency:      params.Currency,
		GameID:        params.GameID,
		GameSessionID: params.GameSessionID,
		Metadata:      meta,
	})
}
