package orders

import "context"

// Store is the authoritative order record. Orders are created PENDING,
// mutated only through Transition, and never deleted.
type Store interface {
	// Create persists a new order. ErrAlreadyExists when the external id was
	// seen before, ErrValidation for a malformed order.
	Create(ctx context.Context, o *Order) error

	Get(ctx context.Context, orderID string) (*Order, error)
	GetByCorrelation(ctx context.Context, correlationID string) (*Order, error)

	// SetPaymentInfo records the gateway initiate result on a PENDING order.
	SetPaymentInfo(ctx context.Context, orderID string, info PaymentInfo) error

	// Transition moves PENDING to a terminal state. Repeating a transition to
	// the same terminal state returns the stored order unchanged; a different
	// target on a terminal order fails with ErrInvalidTransition and mutates
	// nothing. gatewayTxnID is recorded alongside the first transition.
	Transition(ctx context.Context, orderID string, next Status, gatewayTxnID string) (*Order, error)
}
