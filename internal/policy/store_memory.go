package policy

import (
	"context"
	"sync"

	id "credentia/pkg/domain"
	"credentia/pkg/platform/sentinel"
)

// InMemoryStore keeps policies in a map plus a creation-ordered
// per-institution index. Reads hand out deep copies.
type InMemoryStore struct {
	mu            sync.RWMutex
	policies      map[id.PolicyID]*Policy
	byInstitution map[string][]id.PolicyID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		policies:      make(map[id.PolicyID]*Policy),
		byInstitution: make(map[string][]id.PolicyID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, p *Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policies[p.ID]; exists {
		return sentinel.ErrConflict
	}
	s.policies[p.ID] = copyPolicy(p)
	s.byInstitution[p.Institution] = append(s.byInstitution[p.Institution], p.ID)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, policyID id.PolicyID) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[policyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyPolicy(p), nil
}

func (s *InMemoryStore) ListByInstitution(_ context.Context, institution string) ([]*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byInstitution[institution]
	out := make([]*Policy, 0, len(ids))
	for _, policyID := range ids {
		out = append(out, copyPolicy(s.policies[policyID]))
	}
	return out, nil
}

func (s *InMemoryStore) Execute(_ context.Context, policyID id.PolicyID, validate func(*Policy) error, mutate func(*Policy)) (*Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[policyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	mutate(p)
	return copyPolicy(p), nil
}

func copyPolicy(in *Policy) *Policy {
	out := *in
	out.Frameworks = append([]id.Framework{}, in.Frameworks...)
	out.Statuses = make(map[id.Framework]id.ComplianceStatus, len(in.Statuses))
	for k, v := range in.Statuses {
		out.Statuses[k] = v
	}
	return &out
}
