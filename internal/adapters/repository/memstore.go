package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/klepsydra/internal/domain/model"
	"github.com/okian/klepsydra/internal/domain/penalty"
	"github.com/okian/klepsydra/pkg/metrics"
)

// Default initial capacity for the in-memory history slice.
const defaultInitialCapacity = 1024

// MemStore is an in-memory Store backed by a slice and an ID index.
// All methods are safe for concurrent use.
type MemStore struct {
	mu       sync.RWMutex
	attempts []model.Attempt
	byID     map[string]int
}

// MemOption applies a configuration option to the MemStore.
type MemOption func(*MemStore)

// WithInitialCapacity pre-sizes the history slice.
func WithInitialCapacity(n int) MemOption {
	return func(s *MemStore) {
		if n > 0 {
			s.attempts = make([]model.Attempt, 0, n)
		}
	}
}

// NewMemStore creates an empty in-memory history store.
func NewMemStore(opts ...MemOption) *MemStore {
	s := &MemStore{
		attempts: make([]model.Attempt, 0, defaultInitialCapacity),
		byID:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append inserts an attempt at its chronological position. Live solves
// arrive in order and land at the end; imported historical sessions may
// carry older ordering keys and are slotted in so List stays sorted by
// (ordering key, id) like the sqlite backend.
func (s *MemStore) Append(_ context.Context, a model.Attempt) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[a.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAttempt, a.ID)
	}

	idx := sort.Search(len(s.attempts), func(i int) bool {
		if s.attempts[i].OrderingKey != a.OrderingKey {
			return s.attempts[i].OrderingKey > a.OrderingKey
		}
		return s.attempts[i].ID > a.ID
	})
	s.attempts = append(s.attempts, model.Attempt{})
	copy(s.attempts[idx+1:], s.attempts[idx:])
	s.attempts[idx] = a
	for i := idx; i < len(s.attempts); i++ {
		s.byID[s.attempts[i].ID] = i
	}

	metrics.RecordStoreAppendLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	metrics.UpdateHistorySize(len(s.attempts))
	return nil
}

// List returns attempts in chronological order.
func (s *MemStore) List(_ context.Context, offset, limit int) ([]model.Attempt, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset %d", ErrInvalidLimit, offset)
	}
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset >= len(s.attempts) {
		return []model.Attempt{}, nil
	}
	end := len(s.attempts)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]model.Attempt, end-offset)
	copy(out, s.attempts[offset:end])

	metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	return out, nil
}

// Get returns the attempt with the given ID.
func (s *MemStore) Get(_ context.Context, id string) (model.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return model.Attempt{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.attempts[idx], nil
}

// SetPenalty replaces the manual penalty of a stored attempt.
func (s *MemStore) SetPenalty(_ context.Context, id string, p penalty.Penalty) (model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[id]
	if !ok {
		return model.Attempt{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	a := s.attempts[idx]
	a.Result = a.Result.WithManualPenalty(p)
	s.attempts[idx] = a
	return a, nil
}

// Count returns the number of attempts in the history.
func (s *MemStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}

// Clear removes every attempt from the history.
func (s *MemStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts = s.attempts[:0]
	s.byID = make(map[string]int)
	metrics.UpdateHistorySize(0)
	return nil
}
