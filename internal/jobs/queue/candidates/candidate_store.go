package candidatequeue

import (
	"sync"

	"proxyscout/internal/domain"
)

// Store holds the distinct candidates discovered during one cycle, keyed by
// identity. The first sighting of an identity wins; later sightings are
// dropped even if they carry different metadata.
type Store struct {
	mu         sync.Mutex
	order      []string
	candidates map[string]domain.Candidate
}

func NewStore() *Store {
	return &Store{candidates: make(map[string]domain.Candidate)}
}

// Insert adds c unless its identity is already present and reports whether
// it was added.
func (s *Store) Insert(c domain.Candidate) bool {
	key := c.Identity()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.candidates[key]; exists {
		return false
	}
	s.candidates[key] = c
	s.order = append(s.order, key)
	return true
}

// InsertAll inserts every candidate and returns how many were new.
func (s *Store) InsertAll(candidates []domain.Candidate) int {
	inserted := 0
	for _, c := range candidates {
		if s.Insert(c) {
			inserted++
		}
	}
	return inserted
}

func (s *Store) Get(identity string) (domain.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.candidates[identity]
	return c, ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Snapshot returns the stored candidates in insertion order.
func (s *Store) Snapshot() []domain.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Candidate, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.candidates[key])
	}
	return out
}
