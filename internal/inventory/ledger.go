package inventory

import (
	"context"
	"errors"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnknownSKU        = errors.New("unknown sku")
)

// Ledger is the authoritative per-SKU stock counter with exactly-once
// reserve/release semantics per (order, sku). Implementations serialize
// concurrent reserves per SKU only; distinct SKUs never contend.
type Ledger interface {
	// Reserve atomically checks and decrements stock and records a Reserved
	// reservation for (orderID, sku). Insufficient stock fails with
	// ErrInsufficientStock and mutates nothing. A repeat reserve for a pair
	// that is already recorded is a no-op.
	Reserve(ctx context.Context, orderID, sku string, qty int) error

	// Release restores stock only while the (orderID, sku) reservation is
	// Reserved, then marks it Released. Any later call is a no-op, which
	// guards against double restoration from duplicate resolver runs. The
	// recorded reservation quantity is what gets restored; qty is checked
	// against it.
	Release(ctx context.Context, orderID, sku string, qty int) error

	// Stock reports the current counter for a SKU.
	Stock(ctx context.Context, sku string) (int, error)
}

type reservationState string

const (
	stateReserved reservationState = "RESERVED"
	stateReleased reservationState = "RELEASED"
)
