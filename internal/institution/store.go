package institution

import "context"

// Store persists institutions keyed by case-insensitive name.
//
// Execute is the single write serialization point for an institution
// aggregate: the store holds the record's lock (mutex in memory, row lock in
// Postgres) across both callbacks, so validate-then-mutate sequences cannot
// interleave with concurrent writers. Reads return snapshot copies and never
// block writers.
type Store interface {
	// Create fails with sentinel.ErrAlreadyUsed when the name is taken.
	Create(ctx context.Context, inst *Institution) error
	// FindByName fails with sentinel.ErrNotFound when unknown.
	FindByName(ctx context.Context, name string) (*Institution, error)
	List(ctx context.Context) ([]*Institution, error)
	// Execute locks the named institution, runs validate then mutate, and
	// returns the updated snapshot. A validate error aborts the mutation.
	Execute(ctx context.Context, name string, validate func(*Institution) error, mutate func(*Institution)) (*Institution, error)
}
