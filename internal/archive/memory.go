package archive

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/campuslink/arena/internal/arena"
)

// MemoryStore is an in-process result archive for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	results map[uuid.UUID]arena.Result
}

// NewMemoryStore creates an empty in-memory archive.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[uuid.UUID]arena.Result)}
}

func (s *MemoryStore) RecordResult(ctx context.Context, result arena.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[result.SessionID]; exists {
		return nil
	}
	s.results[result.SessionID] = result
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID uuid.UUID) (*arena.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[sessionID]
	if !ok {
		return nil, nil
	}
	return &result, nil
}

func (s *MemoryStore) ListForUser(ctx context.Context, userID string, limit int) ([]arena.Result, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []arena.Result
	for _, result := range s.results {
		for _, pr := range result.Results {
			if pr.UserID == userID {
				out = append(out, result)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
