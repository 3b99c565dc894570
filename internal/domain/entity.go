package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PartnerStatus enumerates the lifecycle states of a Partner.
type PartnerStatus string

const (
	PartnerActive    PartnerStatus = "active"
	PartnerInactive  PartnerStatus = "inactive"
	PartnerSuspended PartnerStatus = "suspended"
)

// Partner is a B2B integration tenant. Every wallet and api key belongs to
// exactly one partner, and every wallet operation is scoped by partner-id.
type Partner struct {
	ID          uuid.UUID     `json:"id"`
	Code        string        `json:"code"`
	Status      PartnerStatus `json:"status"`
	AllowedIPs  []string      `json:"allowedIps"` // exact addresses or CIDR ranges
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func (p *Partner) IsActive() bool { return p.Status == PartnerActive }

// ApiKey is an opaque, hashed credential scoped to a partner and a set of
// wildcard-capable permissions (e.g. "wallet:*", "wallet:deposit", "*").
type ApiKey struct {
	ID               uuid.UUID  `json:"id"`
	PartnerID        uuid.UUID  `json:"partnerId"`
	KeyHash          string     `json:"-"`
	Salt             []byte     `json:"-"`
	VerificationHash string     `json:"-"`
	Permissions      []string   `json:"permissions"`
	Active           bool       `json:"active"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	LastUsedAt       *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func (k *ApiKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// Wallet holds a single player's balance for one partner and one currency.
// A (player, partner) pair may own multiple wallets, one per currency,
// created lazily by the first wallet operation against that currency.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	PlayerID  string    `json:"playerId"`
	PartnerID uuid.UUID `json:"partnerId"`
	Currency  string    `json:"currency"`
	Balance   int64     `json:"balance"` // minor units at the currency's scale
	Active    bool      `json:"active"`
	Locked    bool      `json:"locked"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TransactionType enumerates all wallet transaction types.
type TransactionType string

const (
	TxDeposit    TransactionType = "deposit"
	TxWithdrawal TransactionType = "withdrawal"
	TxBet        TransactionType = "bet"
	TxWin        TransactionType = "win"
	TxRefund     TransactionType = "refund"
	TxRollback   TransactionType = "rollback"
	TxAdjustment TransactionType = "adjustment"
	TxCommission TransactionType = "commission"
	TxBonus      TransactionType = "bonus"
)

// RollbackTypeMap maps an original transaction type to the type recorded for
// its rollback entry. Only types that can legally be rolled back appear here;
// a lookup miss means the caller attempted to roll back an un-rollbackable type.
var RollbackTypeMap = map[TransactionType]TransactionType{
	TxBet:        TxRollback,
	TxWin:        TxRollback,
	TxWithdrawal: TxRollback,
}

// TransactionStatus is the lifecycle state of a Transaction.
type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "pending"
	TxStatusCompleted TransactionStatus = "completed"
	TxStatusFailed    TransactionStatus = "failed"
	TxStatusCanceled  TransactionStatus = "canceled"
)

// Transaction is an append-only ledger entry. Amount is encrypted at rest;
// the Amount field here holds the decrypted minor-unit value once loaded.
type Transaction struct {
	ID                    uuid.UUID         `json:"id"`
	ReferenceID           string            `json:"referenceId"`
	WalletID              uuid.UUID         `json:"walletId"`
	PartnerID             uuid.UUID         `json:"partnerId"`
	PlayerID              string            `json:"playerId"`
	Type                  TransactionType   `json:"type"`
	Amount                int64             `json:"amount"`
	Currency              string            `json:"currency"`
	Status                TransactionStatus `json:"status"`
	OriginalBalance       int64             `json:"originalBalance"`
	UpdatedBalance        int64             `json:"updatedBalance"`
	OriginalTransactionID *uuid.UUID        `json:"originalTransactionId,omitempty"`
	GameID                *string           `json:"gameId,omitempty"`
	GameSessionID         *string           `json:"gameSessionId,omitempty"`
	Metadata              json.RawMessage   `json:"metadata,omitempty"`
	CreatedAt             time.Time         `json:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}

// IdempotencyKey is the composite key used to deduplicate wallet operations.
type IdempotencyKey struct {
	PartnerID   uuid.UUID
	ReferenceID string
}

// RiskLevel buckets an AML risk score into a human-facing severity.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// WindowCounters tracks rolling deposit/withdrawal sums and counts stored on
// an AMLRiskProfile. The AML factor evaluators do not read them; they work
// from the loaded transaction history directly.
type WindowCounters struct {
	DepositSum7d      int64 `json:"depositSum7d"`
	DepositSum30d     int64 `json:"depositSum30d"`
	DepositCount7d    int   `json:"depositCount7d"`
	DepositCount24h   int   `json:"depositCount24h"`
	DepositCount30d   int   `json:"depositCount30d"`
	WithdrawalSum7d   int64 `json:"withdrawalSum7d"`
	WithdrawalSum30d  int64 `json:"withdrawalSum30d"`
	WithdrawalCount7d int   `json:"withdrawalCount7d"`
}

// AMLRiskProfile is the per-(player,partner) rolling risk state.
type AMLRiskProfile struct {
	PlayerID        string          `json:"playerId"`
	PartnerID       uuid.UUID       `json:"partnerId"`
	RiskScore       float64         `json:"riskScore"`
	RiskLevel       RiskLevel       `json:"riskLevel"`
	Counters        WindowCounters  `json:"counters"`
	LastCalculated  time.Time       `json:"lastCalculatedAt"`
	RiskFactors     json.RawMessage `json:"riskFactors,omitempty"`
}

// AMLAlertType enumerates why an alert was raised.
type AMLAlertType string

const (
	AlertThreshold AMLAlertType = "threshold"
	AlertPattern   AMLAlertType = "pattern"
	AlertBlacklist AMLAlertType = "blacklist"
	AlertManual    AMLAlertType = "manual"
)

// AMLAlertSeverity mirrors RiskLevel at the point an alert fires.
type AMLAlertSeverity string

const (
	AlertSeverityLow      AMLAlertSeverity = "low"
	AlertSeverityMedium   AMLAlertSeverity = "medium"
	AlertSeverityHigh     AMLAlertSeverity = "high"
	AlertSeverityCritical AMLAlertSeverity = "critical"
)

// AMLAlertStatus tracks an alert through investigation and reporting.
type AMLAlertStatus string

const (
	AlertStatusOpen            AMLAlertStatus = "open"
	AlertStatusInvestigating   AMLAlertStatus = "investigating"
	AlertStatusPendingReport   AMLAlertStatus = "pending-report"
	AlertStatusReported        AMLAlertStatus = "reported"
	AlertStatusClosedFalsePos  AMLAlertStatus = "closed-false-positive"
	AlertStatusClosedConfirmed AMLAlertStatus = "closed-confirmed"
)

// AMLAlert records a single AML evaluation outcome that crossed the
// alert-worthy threshold.
type AMLAlert struct {
	ID             uuid.UUID        `json:"id"`
	PlayerID       string           `json:"playerId"`
	PartnerID      uuid.UUID        `json:"partnerId"`
	TransactionID  *uuid.UUID       `json:"transactionId,omitempty"`
	Type           AMLAlertType     `json:"type"`
	Severity       AMLAlertSeverity `json:"severity"`
	Status         AMLAlertStatus   `json:"status"`
	ScoreAtAlert   float64          `json:"scoreAtAlert"`
	FactorsAtAlert json.RawMessage  `json:"factorsAtAlert,omitempty"`
	ReportRequired bool             `json:"reportRequired"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}
