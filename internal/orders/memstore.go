package orders

import (
	"context"
	"sync"
	"time"
)

// MemStore is the in-process Store used by tests and single-node setups.
// One lock over the maps; transitions are atomic per order by construction.
type MemStore struct {
	mu         sync.RWMutex
	byID       map[string]*Order
	byCorr     map[string]string
	byExternal map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		byID:       make(map[string]*Order),
		byCorr:     make(map[string]string),
		byExternal: make(map[string]string),
	}
}

func (s *MemStore) Create(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ExternalID != "" {
		if _, ok := s.byExternal[o.ExternalID]; ok {
			return ErrAlreadyExists
		}
	}
	if _, ok := s.byID[o.ID]; ok {
		return ErrAlreadyExists
	}

	cp := o.Clone()
	s.byID[cp.ID] = cp
	s.byCorr[cp.CorrelationID] = cp.ID
	if cp.ExternalID != "" {
		s.byExternal[cp.ExternalID] = cp.ID
	}
	return nil
}

func (s *MemStore) Get(_ context.Context, orderID string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (s *MemStore) GetByCorrelation(_ context.Context, correlationID string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCorr[correlationID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *MemStore) SetPaymentInfo(_ context.Context, orderID string, info PaymentInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[orderID]
	if !ok {
		return ErrNotFound
	}
	o.Payment = info
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemStore) Transition(_ context.Context, orderID string, next Status, gatewayTxnID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.byID[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	if !next.Terminal() {
		return nil, ErrInvalidTransition
	}
	if o.Status == next {
		// duplicate resolver run for the same callback
		return o.Clone(), nil
	}
	if !CanTransition(o.Status, next) {
		return nil, ErrInvalidTransition
	}

	o.Status = next
	if gatewayTxnID != "" {
		o.GatewayTxnID = gatewayTxnID
	}
	o.UpdatedAt = time.Now().UTC()
	return o.Clone(), nil
}
