package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"credrelay/internal/domain"
	"credrelay/pkg/platform/sentinel"
)

// In-memory stores are the default backend and the reference semantics for
// the others. Locks are held only for map access, never across registry or
// other I/O.

type InMemoryCredentialStore struct {
	mu    sync.RWMutex
	creds map[string]domain.Credential
	order []string
}

func NewInMemoryCredentialStore() *InMemoryCredentialStore {
	return &InMemoryCredentialStore{creds: make(map[string]domain.Credential)}
}

func key(contentHash string) string { return strings.ToLower(contentHash) }

func (s *InMemoryCredentialStore) Put(_ context.Context, cred domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(cred.ContentHash)
	if _, exists := s.creds[k]; !exists {
		s.order = append(s.order, k)
	}
	s.creds[k] = cred.Clone()
	return nil
}

func (s *InMemoryCredentialStore) Get(_ context.Context, contentHash string) (domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cred, ok := s.creds[key(contentHash)]; ok {
		return cred.Clone(), nil
	}
	return domain.Credential{}, sentinel.ErrNotFound
}

func (s *InMemoryCredentialStore) List(_ context.Context) ([]domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Credential, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.creds[k].Clone())
	}
	return out, nil
}

type InMemoryRequestStore struct {
	mu       sync.RWMutex
	requests map[string]domain.ProofRequest
	order    []string
}

func NewInMemoryRequestStore() *InMemoryRequestStore {
	return &InMemoryRequestStore{requests: make(map[string]domain.ProofRequest)}
}

func (s *InMemoryRequestStore) Save(_ context.Context, req domain.ProofRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; !exists {
		s.order = append(s.order, req.ID)
	}
	s.requests[req.ID] = req
	return nil
}

func (s *InMemoryRequestStore) Get(_ context.Context, id string) (domain.ProofRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if req, ok := s.requests[id]; ok {
		return req, nil
	}
	return domain.ProofRequest{}, sentinel.ErrNotFound
}

func (s *InMemoryRequestStore) ListPending(_ context.Context) ([]domain.ProofRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ProofRequest, 0)
	for _, id := range s.order {
		if req := s.requests[id]; req.Status == domain.StatusPending {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *InMemoryRequestStore) Resolve(_ context.Context, id string, status domain.RequestStatus, presentation *domain.Presentation, resolvedAt time.Time) (domain.ProofRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return domain.ProofRequest{}, sentinel.ErrNotFound
	}
	if req.Status != domain.StatusPending {
		return req, sentinel.ErrConflict
	}
	req.Status = status
	req.ResolvedAt = &resolvedAt
	req.Presentation = presentation
	s.requests[id] = req
	return req, nil
}
