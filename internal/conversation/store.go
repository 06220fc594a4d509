// Package conversation keeps the transcript of one session.
package conversation

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
)

type Turn struct {
	Role    Role
	Content string
}

// Store is an append-only, insertion ordered log of turns. It has a single
// writer but may be read concurrently, e.g. by a rendering loop.
type Store struct {
	id    string
	mu    sync.RWMutex
	turns []Turn
}

func NewStore() *Store {
	return &Store{id: uuid.NewString()}
}

func (s *Store) ID() string { return s.id }

func (s *Store) Append(turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
}

// All returns a copy of every turn in insertion order.
func (s *Store) All() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.turns)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Answered returns the turns that form complete exchanges, skipping user turns
// that never received an assistant reply.
func (s *Store) Answered() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	answered := make([]Turn, 0, len(s.turns))
	for i, turn := range s.turns {
		if turn.Role == User && (i+1 >= len(s.turns) || s.turns[i+1].Role != Assistant) {
			continue
		}
		answered = append(answered, turn)
	}
	return answered
}
