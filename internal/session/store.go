// Package session keeps bounded, append-only conversation histories keyed by
// an opaque session id.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// Role of one conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single conversation entry.
type Turn struct {
	Role string
	Text string
}

// Store is an in-memory session map. Appends for the same id are serialized
// by the store's lock; there is no ordering across different ids. Safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	maxTurns int // 2 × configured exchange count
	sessions map[string][]Turn
}

// NewStore creates a session store keeping at most maxExchanges user/assistant
// pairs per session, oldest dropped first.
func NewStore(maxExchanges int) *Store {
	if maxExchanges <= 0 {
		maxExchanges = 1
	}
	return &Store{
		maxTurns: 2 * maxExchanges,
		sessions: make(map[string][]Turn),
	}
}

// NewID returns a fresh opaque session id.
func (s *Store) NewID() string {
	return uuid.NewString()
}

// Get returns the turns of a session in order. An unknown id yields an empty
// history, not an error.
func (s *Store) Get(id string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.sessions[id]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Append records one exchange, creating the session on first use and
// truncating from the oldest end once the turn count exceeds the bound.
func (s *Store) Append(id, userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.sessions[id],
		Turn{Role: RoleUser, Text: userText},
		Turn{Role: RoleAssistant, Text: assistantText},
	)
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	s.sessions[id] = turns
}

// Clear removes the session entirely. An unknown id is a no-op.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
