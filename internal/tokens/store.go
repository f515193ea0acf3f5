package tokens

import (
	"context"
	"sync"
	"time"

	"fitdash/internal/model"
)

// Store persists token records. Get returns nil, nil when no record exists.
// Set must replace the whole record in one step so a concurrent Get never
// sees a new access token next to an old expiry.
type Store interface {
	Get(ctx context.Context, userID string, p model.Provider) (*model.TokenRecord, error)
	Set(ctx context.Context, rec *model.TokenRecord) error
	Delete(ctx context.Context, userID string, p model.Provider) error
}

// StateStore records anti-forgery state values issued by Authorize.
// ConsumeState returns ok=false for unknown, expired or already used states.
type StateStore interface {
	SaveState(ctx context.Context, state, userID string, p model.Provider, expiresAt time.Time) error
	ConsumeState(ctx context.Context, state string, now time.Time) (userID string, p model.Provider, ok bool, err error)
}

type storeKey struct {
	userID   string
	provider model.Provider
}

type pendingState struct {
	userID    string
	provider  model.Provider
	expiresAt time.Time
}

// MemoryStore is an in-process Store and StateStore.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[storeKey]model.TokenRecord
	states map[string]pendingState
}

var (
	_ Store      = (*MemoryStore)(nil)
	_ StateStore = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[storeKey]model.TokenRecord),
		states: make(map[string]pendingState),
	}
}

func (s *MemoryStore) Get(_ context.Context, userID string, p model.Provider) (*model.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tokens[storeKey{userID, p}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) Set(_ context.Context, rec *model.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[storeKey{rec.UserID, rec.Provider}] = *rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string, p model.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, storeKey{userID, p})
	return nil
}

func (s *MemoryStore) SaveState(_ context.Context, state, userID string, p model.Provider, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state] = pendingState{userID: userID, provider: p, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) ConsumeState(_ context.Context, state string, now time.Time) (string, model.Provider, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, ok := s.states[state]
	if !ok {
		return "", "", false, nil
	}
	delete(s.states, state)
	if !now.Before(ps.expiresAt) {
		return "", "", false, nil
	}
	return ps.userID, ps.provider, true, nil
}
