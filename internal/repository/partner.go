package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/musig5344/ocasino/internal/domain"
)

type partnerRepo struct{}

// NewPartnerRepository returns a pgx-backed PartnerRepository.
func NewPartnerRepository() PartnerRepository {
	return &partnerRepo{}
}

func (r *partnerRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Partner, error) {
	row := db.QueryRow(ctx, `
		SELECT id, code, status, allowed_ips, created_at, updated_at
		FROM partners WHERE id = $1`, id)
	return scanPartner(row)
}

func (r *partnerRepo) FindByCode(ctx context.Context, db DBTX, code string) (*domain.Partner, error) {
	row := db.QueryRow(ctx, `
		SELECT id, code, status, allowed_ips, created_at, updated_at
		FROM partners WHERE code = $1`, code)
	return scanPartner(row)
}

func scanPartner(row pgx.Row) (*domain.Partner, error) {
	var p domain.Partner
	var status string
	err := row.Scan(&p.ID, &p.Code, &status, &p.AllowedIPs, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan partner: %w", err)
	}
	p.Status = domain.PartnerStatus(status)
	return &p, nil
}
