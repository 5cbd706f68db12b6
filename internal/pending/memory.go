package pending

import (
	"context"
	"sync"
)

// MemoryTracker mirrors RedisTracker for tests and redis-less runs.
type MemoryTracker struct {
	mu      sync.Mutex
	pending map[int64]bool
	preauth map[int64]string
}

var _ Tracker = (*MemoryTracker)(nil)

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{pending: map[int64]bool{}, preauth: map[int64]string{}}
}

func (t *MemoryTracker) RecordRequest(_ context.Context, userID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[userID] = true
	return nil
}

func (t *MemoryTracker) IsPending(_ context.Context, userID int64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending[userID], nil
}

func (t *MemoryTracker) Clear(_ context.Context, userID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, userID)
	return nil
}

func (t *MemoryTracker) PreAuthorize(_ context.Context, userID int64, orderID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.preauth[userID] = orderID
	return nil
}

func (t *MemoryTracker) IsPreAuthorized(_ context.Context, userID int64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.preauth[userID]
	return ok, nil
}

func (t *MemoryTracker) ClearPreAuthorization(_ context.Context, userID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.preauth, userID)
	return nil
}
