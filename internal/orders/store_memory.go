package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps orders in a mutex-guarded map with the same conditional
// write semantics as the Postgres store. Used as a startup fallback when no
// database is reachable, and by tests.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]*Order
	byGPID map[string]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: map[string]*Order{},
		byGPID: map[string]string{},
	}
}

func (s *MemoryStore) Create(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("insert order: duplicate id %s", o.ID)
	}
	cp := *o
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.orders[o.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) FindByGatewayPaymentID(_ context.Context, gatewayPaymentID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byGPID[gatewayPaymentID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.orders[id]
	return &cp, nil
}

func (s *MemoryStore) AttachGatewayPayment(_ context.Context, orderID, gatewayPaymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if o.GatewayPaymentID != "" || o.Status != StatusCreated {
		return ErrGatewayIDTaken
	}
	o.GatewayPaymentID = gatewayPaymentID
	o.Status = StatusAwaitingPayment
	o.UpdatedAt = time.Now().UTC()
	s.byGPID[gatewayPaymentID] = orderID
	return nil
}

func (s *MemoryStore) CompareAndSetStatus(_ context.Context, orderID string, expected, next Status) (bool, error) {
	if !CanTransition(expected, next) {
		return false, fmt.Errorf("invalid transition %s -> %s", expected, next)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != expected {
		return false, nil
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) MarkGranted(_ context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != StatusApproved || o.Granted {
		return false, nil
	}
	o.Granted = true
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, orderID string, next Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ListUngranted(_ context.Context, limit int) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Order
	for _, o := range s.orders {
		if o.Status == StatusApproved && !o.Granted {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
