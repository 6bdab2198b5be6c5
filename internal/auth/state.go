package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

const stateTTL = 5 * time.Minute

// StateStore hands out one-shot OAuth state tokens. Entries live in memory:
// losing them on restart only forces an in-flight login to start over.
type StateStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewStateStore() *StateStore {
	return &StateStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// WithClock fixes the store clock for tests.
func (s *StateStore) WithClock(now func() time.Time) *StateStore {
	s.now = now
	return s
}

// Issue mints a new state token valid for five minutes.
func (s *StateStore) Issue() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := hex.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.cleanup(now)
	s.entries[state] = now.Add(stateTTL)
	return state, nil
}

// Consume validates and burns a state token. A token is good exactly once.
func (s *StateStore) Consume(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.cleanup(now)
	expiresAt, ok := s.entries[state]
	if !ok {
		return false
	}
	delete(s.entries, state)
	return expiresAt.After(now)
}

func (s *StateStore) cleanup(now time.Time) {
	for state, expiresAt := range s.entries {
		if !expiresAt.After(now) {
			delete(s.entries, state)
		}
	}
}
