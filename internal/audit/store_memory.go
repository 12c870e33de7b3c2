package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	id "credentia/pkg/domain"
	"credentia/pkg/platform/sentinel"
)

// InMemoryStore keeps audits in a map plus a creation-ordered
// per-institution index. Reads hand out copies.
type InMemoryStore struct {
	mu            sync.RWMutex
	audits        map[id.AuditID]*ComplianceAudit
	byInstitution map[string][]id.AuditID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		audits:        make(map[id.AuditID]*ComplianceAudit),
		byInstitution: make(map[string][]id.AuditID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, a *ComplianceAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.audits[a.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *a
	s.audits[a.ID] = &copied
	s.byInstitution[a.Institution] = append(s.byInstitution[a.Institution], a.ID)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, auditID id.AuditID) (*ComplianceAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.audits[auditID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *InMemoryStore) ListByInstitution(_ context.Context, institution string) ([]*ComplianceAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byInstitution[institution]
	out := make([]*ComplianceAudit, 0, len(ids))
	for _, auditID := range ids {
		copied := *s.audits[auditID]
		out = append(out, &copied)
	}
	return out, nil
}

func (s *InMemoryStore) ListDueBetween(_ context.Context, after, until time.Time) ([]*ComplianceAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ComplianceAudit
	for _, a := range s.audits {
		if !a.Active {
			continue
		}
		if a.NextReviewAt.After(after) && !a.NextReviewAt.After(until) {
			copied := *a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextReviewAt.Equal(out[j].NextReviewAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].NextReviewAt.Before(out[j].NextReviewAt)
	})
	return out, nil
}

func (s *InMemoryStore) Execute(_ context.Context, auditID id.AuditID, validate func(*ComplianceAudit) error, mutate func(*ComplianceAudit)) (*ComplianceAudit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[auditID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(a); err != nil {
		return nil, err
	}
	mutate(a)
	copied := *a
	return &copied, nil
}
