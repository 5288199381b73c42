package domain

import (
	"context"
	"time"
)

// ProviderCredential is one user's API key for one provider. Token holds the
// decrypted value; encryption at rest happens below the repository boundary.
type ProviderCredential struct {
	ID        string
	UserID    string
	Provider  string
	Token     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CredentialStore extends CredentialRepository with the management surface
// used by the credential endpoints.
type CredentialStore interface {
	CredentialRepository
	Upsert(ctx context.Context, cred *ProviderCredential) error
	Delete(ctx context.Context, userID, provider string) error
	List(ctx context.Context, userID string) ([]ProviderCredential, error)
}
