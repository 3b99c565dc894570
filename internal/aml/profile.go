package aml

import (
	"encoding/json"
	"time"

	"github.com/musig5344/ocasino/internal/domain"
)

// LevelFor buckets a risk score into the same four-level scale alerts use
// (spec's alert emission rule), so a profile's risk_level always agrees
// with what a transaction at that score would trigger.
func LevelFor(score float64) domain.RiskLevel {
	switch {
	case score >= 80:
		return domain.RiskCritical
	case score >= 60:
		return domain.RiskHigh
	case score >= 40:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// UpdateProfile applies the weighted-average update rule: new_score =
// 0.7*old + 0.3*current. This damps single-transaction spikes while letting
// sustained suspicious behavior accumulate. Counters are recomputed from
// source, never incremented, so a missed event can never leave the profile
// permanently out of sync.
func UpdateProfile(profile *domain.AMLRiskProfile, currentScore int, counters domain.WindowCounters, factors []FactorResult) {
	profile.RiskScore = 0.7*profile.RiskScore + 0.3*float64(currentScore)
	profile.RiskLevel = LevelFor(profile.RiskScore)
	profile.Counters = counters
	profile.LastCalculated = time.Now()
	profile.RiskFactors = marshalFactors(factors)
}

// computeCounters recomputes every rolling-window counter directly from the
// loaded history rather than incrementing the previous profile's counters.
func computeCounters(history []domain.Transaction, now time.Time) domain.WindowCounters {
	var c domain.WindowCounters
	since24h := now.Add(-24 * time.Hour)
	since7d := now.Add(-7 * 24 * time.Hour)
	since30d := now.Add(-30 * 24 * time.Hour)

	for _, t := range history {
		switch t.Type {
		case domain.TxDeposit:
			if !t.CreatedAt.Before(since7d) {
				c.DepositSum7d += t.Amount
				c.DepositCount7d++
			}
			if !t.CreatedAt.Before(since30d) {
				c.DepositSum30d += t.Amount
				c.DepositCount30d++
			}
			if !t.CreatedAt.Before(since24h) {
				c.DepositCount24h++
			}
		case domain.TxWithdrawal:
			if !t.CreatedAt.Before(since7d) {
				c.WithdrawalSum7d += t.Amount
				c.WithdrawalCount7d++
			}
			if !t.CreatedAt.Before(since30d) {
				c.WithdrawalSum30d += t.Amount
			}
		}
	}
	return c
}

func marshalFactors(factors []FactorResult) json.RawMessage {
	blob, err := json.Marshal(factors)
	if err != nil {
		return json.RawMessage(`[]`)
	}
	return blob
}
