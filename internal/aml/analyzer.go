package aml

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	icrypto "github.com/musig5344/ocasino/internal/crypto"
	"github.com/musig5344/ocasino/internal/domain"
	"github.com/musig5344/ocasino/internal/repository"
)

// historyWindow is how far back RecentByPlayer looks: 30 days is sufficient
// for every factor evaluator.
const historyWindow = 30 * 24 * time.Hour

// Analyzer subscribes to wallet.transaction.created and maintains each
// player's AMLRiskProfile, raising AMLAlert rows when a transaction's risk
// factors cross the alert thresholds. Satisfies eventbus.Handler via
// Handle, so it wires straight into the bus with no adapter.
type Analyzer struct {
	pool         *pgxpool.Pool
	transactions repository.TransactionRepository
	profiles     repository.AMLRepository
	outbox       repository.OutboxRepository
	cipher       *icrypto.AmountCipher
}

// NewAnalyzer builds an analyzer against the given repositories. pool is
// used directly (rather than the DBTX abstraction) because the analyzer
// owns its own transaction boundary, separate from the wallet write that
// produced the triggering event.
func NewAnalyzer(pool *pgxpool.Pool, transactions repository.TransactionRepository, profiles repository.AMLRepository, outbox repository.OutboxRepository, cipher *icrypto.AmountCipher) *Analyzer {
	return &Analyzer{pool: pool, transactions: transactions, profiles: profiles, outbox: outbox, cipher: cipher}
}

// Handle decodes the wallet transaction that triggered the event and runs
// the profile-update/alert pipeline atomically within one database
// transaction, so the profile update, alert insert, and alert outbox event
// all commit or roll back together. A returned error never affects the
// wallet write that produced event; the caller (eventbus.WithRetry) retries
// with backoff and eventually dead-letters it.
func (a *Analyzer) Handle(ctx context.Context, event domain.OutboxDraft) error {
	if event.EventType != domain.EventWalletTransactionCreated {
		return nil
	}

	var current domain.Transaction
	if err := json.Unmarshal(event.Payload, &current); err != nil {
		return fmt.Errorf("decode wallet transaction event: %w", err)
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin aml transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := a.analyze(ctx, tx, current); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// analyze runs the six steps of the analysis: load-or-create profile, load
// history, evaluate factors, decide on an alert, update the profile, and
// (if alerted) publish aml.alert.created.
func (a *Analyzer) analyze(ctx context.Context, tx pgx.Tx, current domain.Transaction) error {
	profile, err := a.profiles.FindProfile(ctx, tx, current.PartnerID, current.PlayerID)
	if err != nil {
		return fmt.Errorf("load risk profile: %w", err)
	}
	if profile == nil {
		profile = &domain.AMLRiskProfile{
			PlayerID:  current.PlayerID,
			PartnerID: current.PartnerID,
			RiskLevel: domain.RiskLow,
		}
	}

	since := current.CreatedAt.Add(-historyWindow)
	history, err := a.transactions.RecentByPlayer(ctx, tx, current.PartnerID, current.PlayerID, since, a.decryptAmount)
	if err != nil {
		return fmt.Errorf("load recent transactions: %w", err)
	}
	history = excludeByID(history, current.ID)

	factors, score := Evaluate(EvaluationInput{Current: current, History: history, Now: time.Now()})
	counters := computeCounters(history, current.CreatedAt)

	if alert := DecideAlert(float64(score), factors); alert != nil {
		alert.PlayerID = current.PlayerID
		alert.PartnerID = current.PartnerID
		alert.TransactionID = &current.ID

		if err := a.profiles.InsertAlert(ctx, tx, alert); err != nil {
			return fmt.Errorf("insert aml alert: %w", err)
		}
		if err := a.outbox.Insert(ctx, tx, domain.NewAMLAlertCreatedEvent(alert)); err != nil {
			return fmt.Errorf("insert aml alert outbox event: %w", err)
		}
	}

	UpdateProfile(profile, score, counters, factors)
	if err := a.profiles.UpsertProfile(ctx, tx, profile); err != nil {
		return fmt.Errorf("update risk profile: %w", err)
	}
	return nil
}

func (a *Analyzer) decryptAmount(blob string) (int64, error) {
	plaintext, err := a.cipher.Decrypt(blob)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(plaintext), 10, 64)
}

// excludeByID drops the triggering transaction from its own history load;
// RecentByPlayer has no upper time bound, so the already-committed row is
// returned with the history and would otherwise be double-counted in every
// factor evaluator.
func excludeByID(history []domain.Transaction, id uuid.UUID) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(history))
	for _, t := range history {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}
