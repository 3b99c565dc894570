package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/musig5344/ocasino/internal/domain"
)

type amlRepo struct{}

// NewAMLRepository returns a pgx-backed AMLRepository.
func NewAMLRepository() AMLRepository {
	return &amlRepo{}
}

func (r *amlRepo) FindProfile(ctx context.Context, db DBTX, partnerID uuid.UUID, playerID string) (*domain.AMLRiskProfile, error) {
	row := db.QueryRow(ctx, `
		SELECT player_id, partner_id, risk_score, risk_level, deposit_sum_7d, deposit_sum_30d,
		       deposit_count_7d, deposit_count_24h, deposit_count_30d, withdrawal_sum_7d,
		       withdrawal_sum_30d, withdrawal_count_7d, last_calculated_at, risk_factors
		FROM aml_risk_profiles WHERE partner_id = $1 AND player_id = $2`, partnerID, playerID)

	var p domain.AMLRiskProfile
	var level string
	err := row.Scan(&p.PlayerID, &p.PartnerID, &p.RiskScore, &level,
		&p.Counters.DepositSum7d, &p.Counters.DepositSum30d,
		&p.Counters.DepositCount7d, &p.Counters.DepositCount24h, &p.Counters.DepositCount30d,
		&p.Counters.WithdrawalSum7d, &p.Counters.WithdrawalSum30d, &p.Counters.WithdrawalCount7d,
		&p.LastCalculated, &p.RiskFactors)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan aml profile: %w", err)
	}
	p.RiskLevel = domain.RiskLevel(level)
	return &p, nil
}

func (r *amlRepo) UpsertProfile(ctx context.Context, db DBTX, profile *domain.AMLRiskProfile) error {
	_, err := db.Exec(ctx, `
		INSERT INTO aml_risk_profiles
		  (player_id, partner_id, risk_score, risk_level, deposit_sum_7d, deposit_sum_30d,
		   deposit_count_7d, deposit_count_24h, deposit_count_30d, withdrawal_sum_7d,
		   withdrawal_sum_30d, withdrawal_count_7d, last_calculated_at, risk_factors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), $13)
		ON CONFLICT (player_id, partner_id) DO UPDATE SET
		  risk_score = EXCLUDED.risk_score,
		  risk_level = EXCLUDED.risk_level,
		  deposit_sum_7d = EXCLUDED.deposit_sum_7d,
		  deposit_sum_30d = EXCLUDED.deposit_sum_30d,
		  deposit_count_7d = EXCLUDED.deposit_count_7d,
		  deposit_count_24h = EXCLUDED.deposit_count_24h,
		  deposit_count_30d = EXCLUDED.deposit_count_30d,
		  withdrawal_sum_7d = EXCLUDED.withdrawal_sum_7d,
		  withdrawal_sum_30d = EXCLUDED.withdrawal_sum_30d,
		  withdrawal_count_7d = EXCLUDED.withdrawal_count_7d,
		  last_calculated_at = now(),
		  risk_factors = EXCLUDED.risk_factors`,
		profile.PlayerID, profile.PartnerID, profile.RiskScore, string(profile.RiskLevel),
		profile.Counters.DepositSum7d, profile.Counters.DepositSum30d,
		profile.Counters.DepositCount7d, profile.Counters.DepositCount24h, profile.Counters.DepositCount30d,
		profile.Counters.WithdrawalSum7d, profile.Counters.WithdrawalSum30d, profile.Counters.WithdrawalCount7d,
		profile.RiskFactors,
	)
	if err != nil {
		return fmt.Errorf("upsert aml profile: %w", err)
	}
	return nil
}

func (r *amlRepo) InsertAlert(ctx context.Context, tx pgx.Tx, alert *domain.AMLAlert) error {
	row := tx.QueryRow(ctx, `
		INSERT INTO aml_alerts
		  (id, player_id, partner_id, transaction_id, type, severity, status, score_at_alert, factors_at_alert)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		alert.ID, alert.PlayerID, alert.PartnerID, alert.TransactionID,
		string(alert.Type), string(alert.Severity), string(alert.Status),
		alert.ScoreAtAlert, alert.FactorsAtAlert,
	)
	if err := row.Scan(&alert.CreatedAt, &alert.UpdatedAt); err != nil {
		return fmt.Errorf("insert aml alert: %w", err)
	}
	return nil
}
