package credential

import (
	"context"

	id "credentia/pkg/domain"
)

// Store persists credentials and the per-student issuance index.
//
// ListByStudent must preserve insertion order: the index is append-only and
// callers rely on it for stable transcript rendering.
type Store interface {
	Create(ctx context.Context, cred *Credential) error
	// FindByID fails with sentinel.ErrNotFound when unknown.
	FindByID(ctx context.Context, credID id.CredentialID) (*Credential, error)
	ListByStudent(ctx context.Context, student id.Principal) ([]*Credential, error)
	// Execute locks the credential, runs validate then mutate, and returns
	// the updated snapshot. A validate error aborts the mutation.
	Execute(ctx context.Context, credID id.CredentialID, validate func(*Credential) error, mutate func(*Credential)) (*Credential, error)
}
