package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

type CredentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) SaveCredential(ctx context.Context, cred domain.Credential) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO inference_credentials (user_id, api_key, updated_at)
VALUES ($1,$2,$3)
ON CONFLICT (user_id) DO UPDATE SET api_key = EXCLUDED.api_key, updated_at = EXCLUDED.updated_at
`, cred.UserID, cred.APIKey, cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) GetCredential(ctx context.Context, userID string) (*domain.Credential, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT user_id, api_key, updated_at
FROM inference_credentials
WHERE user_id = $1
`, userID)

	var cred domain.Credential
	if err := row.Scan(&cred.UserID, &cred.APIKey, &cred.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get credential", fmt.Errorf("user_id=%s", userID))
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &cred, nil
}
