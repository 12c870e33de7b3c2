package policy

import (
	"context"

	id "credentia/pkg/domain"
)

// Store persists policies keyed by id, with a per-institution listing.
type Store interface {
	Create(ctx context.Context, p *Policy) error
	// FindByID fails with sentinel.ErrNotFound when unknown.
	FindByID(ctx context.Context, policyID id.PolicyID) (*Policy, error)
	// ListByInstitution returns policies in creation order.
	ListByInstitution(ctx context.Context, institution string) ([]*Policy, error)
	// Execute locks the policy, runs validate then mutate, and returns the
	// updated snapshot. A validate error aborts the mutation.
	Execute(ctx context.Context, policyID id.PolicyID, validate func(*Policy) error, mutate func(*Policy)) (*Policy, error)
}
