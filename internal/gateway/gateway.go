// Package gateway is the boundary to the external payment provider. The
// core only ever talks to the Adapter interface; the concrete provider
// protocol stays behind it.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/ordersys/go-payment-flow/internal/orders"
)

// ErrUnavailable covers transient transport or provider failures; callers
// retry with bounded backoff.
var ErrUnavailable = errors.New("payment gateway unavailable")

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Record is the gateway's view of a transaction, read-only to this core.
type Record struct {
	Status        Status    `json:"status"`
	TransactionID string    `json:"transaction_id,omitempty"`
	AmountCents   int64     `json:"amount_cents"`
	PaidAt        time.Time `json:"paid_at,omitempty"`
}

type InitiateResult struct {
	Provider  string    `json:"provider_name"`
	PayURL    string    `json:"pay_url,omitempty"`
	QRCodeURL string    `json:"qr_code_url,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Adapter interface {
	// Initiate must be called at most once per order; the order's
	// correlation id is the idempotency key, so a retried call returns the
	// transaction created the first time instead of opening a second one.
	Initiate(ctx context.Context, o *orders.Order) (*InitiateResult, error)

	// Query is a pure read, safe to repeat, and returns a PENDING record
	// for orders the provider has not settled yet.
	Query(ctx context.Context, orderID string) (*Record, error)
}
