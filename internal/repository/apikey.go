package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/musig5344/ocasino/internal/domain"
)

type apiKeyRepo struct{}

// NewApiKeyRepository returns a pgx-backed ApiKeyRepository.
func NewApiKeyRepository() ApiKeyRepository {
	return &apiKeyRepo{}
}

func (r *apiKeyRepo) FindByHash(ctx context.Context, db DBTX, keyHash string) (*domain.ApiKey, error) {
	row := db.QueryRow(ctx, `
		SELECT id, partner_id, key_hash, salt, verification_hash, permissions, active, expires_at, last_used_at, created_at
		FROM api_keys WHERE key_hash = $1`, keyHash)

	var k domain.ApiKey
	err := row.Scan(&k.ID, &k.PartnerID, &k.KeyHash, &k.Salt, &k.VerificationHash, &k.Permissions, &k.Active, &k.ExpiresAt, &k.LastUsedAt, &k.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	return &k, nil
}

func (r *apiKeyRepo) TouchLastUsed(ctx context.Context, db DBTX, id uuid.UUID) error {
	_, err := db.Exec(ctx, `UPDATE api_keys SET last_used_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}
