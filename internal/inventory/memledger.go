package inventory

import (
	"context"
	"fmt"
	"sync"
)

// MemLedger keeps one lock per SKU so reserves on different SKUs never
// contend. The outer lock only guards the map of entries and is held for
// lookups, not for stock mutation.
type MemLedger struct {
	mu   sync.RWMutex
	skus map[string]*skuEntry
}

type skuEntry struct {
	mu           sync.Mutex
	stock        int
	reservations map[string]*reservation // keyed by order id
}

type reservation struct {
	qty   int
	state reservationState
}

// NewMemLedger seeds the ledger from the inventory source.
func NewMemLedger(initial map[string]int) *MemLedger {
	skus := make(map[string]*skuEntry, len(initial))
	for sku, stock := range initial {
		skus[sku] = &skuEntry{stock: stock, reservations: make(map[string]*reservation)}
	}
	return &MemLedger{skus: skus}
}

func (l *MemLedger) entry(sku string) (*skuEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.skus[sku]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSKU, sku)
	}
	return e, nil
}

func (l *MemLedger) Reserve(_ context.Context, orderID, sku string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("reserve qty must be positive, got %d", qty)
	}
	e, err := l.entry(sku)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.reservations[orderID]; ok {
		// already reserved (or released) for this order, keep it exactly-once
		return nil
	}
	if e.stock < qty {
		return fmt.Errorf("%w: sku %s has %d, need %d", ErrInsufficientStock, sku, e.stock, qty)
	}
	e.stock -= qty
	e.reservations[orderID] = &reservation{qty: qty, state: stateReserved}
	return nil
}

func (l *MemLedger) Release(_ context.Context, orderID, sku string, qty int) error {
	e, err := l.entry(sku)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	res, ok := e.reservations[orderID]
	if !ok || res.state != stateReserved {
		return nil // no-op: never reserved, or already released
	}
	if qty != 0 && qty != res.qty {
		return fmt.Errorf("release qty %d does not match reserved %d for order %s sku %s", qty, res.qty, orderID, sku)
	}
	e.stock += res.qty
	res.state = stateReleased
	return nil
}

func (l *MemLedger) Stock(_ context.Context, sku string) (int, error) {
	e, err := l.entry(sku)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stock, nil
}
