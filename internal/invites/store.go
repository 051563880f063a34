package invites

import (
	"sync"

	"github.com/google/uuid"
)

// HandledStore is the locally persisted record of invites the viewer has
// already acted on, keyed by session id. It must survive process restarts
// so dismissed invites never resurface.
type HandledStore interface {
	Contains(sessionID uuid.UUID) (bool, error)
	Add(sessionID uuid.UUID) error
}

// MemoryStore is an in-process HandledStore for tests and ephemeral
// consumers.
type MemoryStore struct {
	mu      sync.Mutex
	handled map[uuid.UUID]bool
}

// NewMemoryStore creates an empty in-memory handled set.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{handled: make(map[uuid.UUID]bool)}
}

func (s *MemoryStore) Contains(sessionID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handled[sessionID], nil
}

func (s *MemoryStore) Add(sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handled[sessionID] = true
	return nil
}
