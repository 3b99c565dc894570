package wallet

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/musig5344/ocasino/internal/domain"
)

// Withdraw debits a wallet's balance. Fails with insufficient-funds if the
// balance is below the requested amount.
func (e *Engine) Withdraw(ctx context.Context, tx pgx.Tx, params OperationParams) (*CommandResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	wallet, err := e.lockWalletForUpdate(ctx, tx, params.PartnerID, params.PlayerID, params.Currency)
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}

	if result, err := e.checkIdempotency(ctx, tx, wallet, params, domain.TxWithdrawal); err != nil || result != nil {
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

	return e.postEntry(ctx, tx, entryParams{
		Wallet:        wallet,
		Type:          domain.TxWithdrawal,
		Amount:        params.Amount,
		Delta:         -params.Amount,
		ReferenceID:   params.ReferenceID,
		Currency:      params.Currency,
		GameID:        params.GameID,
		GameSessionID: params.GameSessionID,
		Metadata:      params.Metadata,
	})
}
