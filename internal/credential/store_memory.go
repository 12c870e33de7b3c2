package credential

import (
	"context"
	"sync"

	id "credentia/pkg/domain"
	"credentia/pkg/platform/sentinel"
)

// InMemoryStore keeps credentials in a map plus an insertion-ordered
// per-student index. Reads hand out deep copies.
type InMemoryStore struct {
	mu          sync.RWMutex
	credentials map[id.CredentialID]*Credential
	byStudent   map[id.Principal][]id.CredentialID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		credentials: make(map[id.CredentialID]*Credential),
		byStudent:   make(map[id.Principal][]id.CredentialID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.credentials[cred.ID]; exists {
		return sentinel.ErrConflict
	}
	s.credentials[cred.ID] = copyCredential(cred)
	s.byStudent[cred.Student] = append(s.byStudent[cred.Student], cred.ID)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, credID id.CredentialID) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.credentials[credID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyCredential(cred), nil
}

func (s *InMemoryStore) ListByStudent(_ context.Context, student id.Principal) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byStudent[student]
	out := make([]*Credential, 0, len(ids))
	for _, credID := range ids {
		out = append(out, copyCredential(s.credentials[credID]))
	}
	return out, nil
}

func (s *InMemoryStore) Execute(_ context.Context, credID id.CredentialID, validate func(*Credential) error, mutate func(*Credential)) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credentials[credID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(cred); err != nil {
		return nil, err
	}
	mutate(cred)
	return copyCredential(cred), nil
}

func copyCredential(in *Credential) *Credential {
	out := *in
	out.Frameworks = append([]id.Framework{}, in.Frameworks...)
	out.FrameworkCompliance = make(map[id.Framework]bool, len(in.FrameworkCompliance))
	for k, v := range in.FrameworkCompliance {
		out.FrameworkCompliance[k] = v
	}
	return &out
}
