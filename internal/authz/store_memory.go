package authz

import (
	"context"
	"sync"

	id "credentia/pkg/domain"
)

type grantKey struct {
	principal id.Principal
	role      Role
}

// InMemoryStore keeps grants in a map. It favors clarity over performance and
// is the default store when no database is configured.
type InMemoryStore struct {
	mu     sync.RWMutex
	grants map[grantKey]Grant
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{grants: make(map[grantKey]Grant)}
}

func (s *InMemoryStore) Save(_ context.Context, grant Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey{principal: grant.Principal, role: grant.Role}
	if _, exists := s.grants[key]; exists {
		return nil
	}
	s.grants[key] = grant
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, principal id.Principal, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, grantKey{principal: principal, role: role})
	return nil
}

func (s *InMemoryStore) Has(_ context.Context, principal id.Principal, role Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[grantKey{principal: principal, role: role}]
	return ok, nil
}

func (s *InMemoryStore) List(_ context.Context, role Role) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Grant
	for key, grant := range s.grants {
		if key.role == role {
			out = append(out, grant)
		}
	}
	return out, nil
}
