package institution

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	id "credentia/pkg/domain"
	"credentia/pkg/platform/sentinel"
)

// InMemoryStore keeps institutions in a map keyed by lowercased name. The
// store mutex serializes Execute calls, which gives the per-institution write
// serialization the ledger requires; reads hand out deep copies so callers
// never observe a record mid-mutation.
type InMemoryStore struct {
	mu           sync.RWMutex
	institutions map[string]*Institution
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{institutions: make(map[string]*Institution)}
}

func storeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *InMemoryStore) Create(_ context.Context, inst *Institution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(inst.Name)
	if _, exists := s.institutions[key]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.institutions[key] = copyInstitution(inst)
	return nil
}

func (s *InMemoryStore) FindByName(_ context.Context, name string) (*Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.institutions[storeKey(name)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyInstitution(inst), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Institution, 0, len(s.institutions))
	for _, inst := range s.institutions {
		out = append(out, copyInstitution(inst))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}

func (s *InMemoryStore) Execute(_ context.Context, name string, validate func(*Institution) error, mutate func(*Institution)) (*Institution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.institutions[storeKey(name)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(inst); err != nil {
		return nil, err
	}
	mutate(inst)
	return copyInstitution(inst), nil
}

func copyInstitution(in *Institution) *Institution {
	out := *in
	out.Frameworks = append([]id.Framework{}, in.Frameworks...)
	out.AuditHistory = append([]id.AuditID{}, in.AuditHistory...)
	out.ComplianceStatuses = make(map[id.Framework]id.ComplianceStatus, len(in.ComplianceStatuses))
	for k, v := range in.ComplianceStatuses {
		out.ComplianceStatuses[k] = v
	}
	out.LastAuditDates = make(map[id.Framework]time.Time, len(in.LastAuditDates))
	for k, v := range in.LastAuditDates {
		out.LastAuditDates[k] = v
	}
	out.NextAuditDates = make(map[id.Framework]time.Time, len(in.NextAuditDates))
	for k, v := range in.NextAuditDates {
		out.NextAuditDates[k] = v
	}
	return &out
}
