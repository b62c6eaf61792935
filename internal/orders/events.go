package orders

import (
	"encoding/json"
	"time"
)

const (
	EventPaymentCallback = "PaymentCallbackReceived"
	EventStatusUpdated   = "OrderStatusUpdated"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "payment-callback"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// CallbackEventPayload is the normalized form of a gateway callback. Both the
// browser redirect and the server notification reduce to this; it carries no
// status on purpose, the resolver re-queries the gateway for truth.
type CallbackEventPayload struct {
	OrderID    string    `json:"order_id"`
	ReceivedAt time.Time `json:"received_at"`
	RawPayload string    `json:"raw_payload,omitempty"`
}

// NotificationPointerPayload is the pointer event on status.updated. It must
// never grow a status field: subscribers re-query the status endpoint so they
// always observe the latest committed state, not a possibly stale push value.
type NotificationPointerPayload struct {
	OrderID       string    `json:"order_id"`
	CorrelationID string    `json:"correlation_id"`
	ResolvedAt    time.Time `json:"resolved_at"`
}
