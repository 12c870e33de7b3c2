package authz

import (
	"context"

	id "credentia/pkg/domain"
)

// Store persists capability grants. Implementations must make Save idempotent
// for an existing (principal, role) pair and Delete a no-op when the grant is
// absent.
type Store interface {
	Save(ctx context.Context, grant Grant) error
	Delete(ctx context.Context, principal id.Principal, role Role) error
	Has(ctx context.Context, principal id.Principal, role Role) (bool, error)
	List(ctx context.Context, role Role) ([]Grant, error)
}
