package bologna

import (
	"context"
	"sync"

	id "credentia/pkg/domain"
	"credentia/pkg/platform/sentinel"
)

// InMemoryStore keeps Bologna records in a map keyed by credential id.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.CredentialID]*Data
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.CredentialID]*Data)}
}

func (s *InMemoryStore) Save(_ context.Context, data *Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[data.CredentialID] = copyData(data)
	return nil
}

func (s *InMemoryStore) FindByCredential(_ context.Context, credID id.CredentialID) (*Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.records[credID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyData(data), nil
}

func (s *InMemoryStore) Execute(_ context.Context, credID id.CredentialID, validate func(*Data) error, mutate func(*Data)) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.records[credID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(data); err != nil {
		return nil, err
	}
	mutate(data)
	return copyData(data), nil
}

func copyData(in *Data) *Data {
	out := *in
	out.LearningOutcomes = append([]string{}, in.LearningOutcomes...)
	out.MobilityPartners = append([]string{}, in.MobilityPartners...)
	return &out
}
