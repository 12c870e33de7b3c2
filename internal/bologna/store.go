package bologna

import (
	"context"

	id "credentia/pkg/domain"
)

// Store persists Bologna data keyed by credential id.
type Store interface {
	// Save creates or fully replaces the record for a credential.
	Save(ctx context.Context, data *Data) error
	// FindByCredential fails with sentinel.ErrNotFound when the credential
	// has no Bologna data.
	FindByCredential(ctx context.Context, credID id.CredentialID) (*Data, error)
	// Execute locks the record, runs validate then mutate, and returns the
	// updated snapshot.
	Execute(ctx context.Context, credID id.CredentialID, validate func(*Data) error, mutate func(*Data)) (*Data, error)
}
