package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sungminna/marketer/internal/domain"
)

// CredentialRepositoryPG implements domain.CredentialStore. Tokens are stored
// per (user, provider); listing never returns the token value.
type CredentialRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCredentialRepository creates a new credential repository backed by
// PostgreSQL.
func NewCredentialRepository(pool *pgxpool.Pool) *CredentialRepositoryPG {
	return &CredentialRepositoryPG{pool: pool}
}

// Token returns the stored API key for (userID, provider).
func (r *CredentialRepositoryPG) Token(ctx context.Context, userID, provider string) (string, error) {
	row := r.pool.QueryRow(ctx, `
SELECT token FROM provider_credentials WHERE user_id = $1 AND provider = $2;
`, userID, provider)

	var token string
	if err := row.Scan(&token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Upsert stores or replaces the credential for (user, provider).
func (r *CredentialRepositoryPG) Upsert(ctx context.Context, cred *domain.ProviderCredential) error {
	query := `
INSERT INTO provider_credentials (id, user_id, provider, token, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW())
ON CONFLICT (user_id, provider) DO UPDATE SET
    token = EXCLUDED.token,
    updated_at = NOW();
`
	_, err := r.pool.Exec(ctx, query, cred.ID, cred.UserID, cred.Provider, cred.Token)
	return err
}

// Delete removes the credential for (user, provider).
func (r *CredentialRepositoryPG) Delete(ctx context.Context, userID, provider string) error {
	tag, err := r.pool.Exec(ctx, `
DELETE FROM provider_credentials WHERE user_id = $1 AND provider = $2;
`, userID, provider)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns the user's registered providers with token values blanked.
func (r *CredentialRepositoryPG) List(ctx context.Context, userID string) ([]domain.ProviderCredential, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, provider, created_at, updated_at
FROM provider_credentials
WHERE user_id = $1
ORDER BY provider;
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []domain.ProviderCredential
	for rows.Next() {
		var c domain.ProviderCredential
		if err := rows.Scan(&c.ID, &c.UserID, &c.Provider, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}
