package orders

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelRedirect Channel = "redirect"
	ChannelQR       Channel = "qr"
)

// NextAction tells the client what to do with a queried order.
type NextAction string

const (
	NextActionNone     NextAction = "NONE"
	NextActionAskUser  NextAction = "ASK_USER"
	NextActionRedirect NextAction = "REDIRECT"
	NextActionShowQR   NextAction = "SHOW_QR"
)

type OrderItem struct {
	OrderID        string `json:"order_id"`
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Currency       string `json:"currency"`
}

// PaymentInfo is the initiate result snapshot recorded on the order so the
// status endpoint can derive next_action without calling the gateway.
type PaymentInfo struct {
	Provider  string    `json:"provider,omitempty"`
	PayURL    string    `json:"pay_url,omitempty"`
	QRCodeURL string    `json:"qr_code_url,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

type Order struct {
	ID            string      `json:"id"`
	CorrelationID string      `json:"correlation_id"`
	ExternalID    string      `json:"external_id,omitempty"`
	CustomerRef   string      `json:"customer_ref"`
	Channel       Channel     `json:"channel"`
	Items         []OrderItem `json:"items"`
	TotalCents    int64       `json:"total_cents"`
	Currency      string      `json:"currency"`
	Status        Status      `json:"status"`
	Payment       PaymentInfo `json:"payment"`
	GatewayTxnID  string      `json:"gateway_transaction_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// New builds a PENDING order from validated line items. Total is computed
// here, never trusted from the caller.
func New(items []OrderItem, customerRef string, channel Channel, externalID string) (*Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: items must not be empty", ErrValidation)
	}
	if channel != ChannelRedirect && channel != ChannelQR {
		return nil, fmt.Errorf("%w: unknown channel %q", ErrValidation, channel)
	}

	id := uuid.NewString()
	currency := ""
	var total int64
	out := make([]OrderItem, 0, len(items))
	for _, it := range items {
		if it.SKU == "" {
			return nil, fmt.Errorf("%w: item sku must not be empty", ErrValidation)
		}
		if it.Qty <= 0 {
			return nil, fmt.Errorf("%w: qty for sku %s must be positive", ErrValidation, it.SKU)
		}
		if it.UnitPriceCents < 0 {
			return nil, fmt.Errorf("%w: unit price for sku %s must not be negative", ErrValidation, it.SKU)
		}
		if it.Currency == "" {
			it.Currency = "USD"
		}
		if currency == "" {
			currency = it.Currency
		} else if it.Currency != currency {
			return nil, fmt.Errorf("%w: mixed currencies %s and %s", ErrValidation, currency, it.Currency)
		}
		it.OrderID = id
		total += int64(it.Qty) * it.UnitPriceCents
		out = append(out, it)
	}

	now := time.Now().UTC()
	return &Order{
		ID:            id,
		CorrelationID: uuid.NewString(),
		ExternalID:    externalID,
		CustomerRef:   customerRef,
		Channel:       channel,
		Items:         out,
		TotalCents:    total,
		Currency:      currency,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// NextAction derives the client-facing follow-up for the current state.
func (o *Order) NextAction() NextAction {
	if o.Status.Terminal() {
		return NextActionNone
	}
	switch {
	case o.Channel == ChannelRedirect && o.Payment.PayURL != "":
		return NextActionRedirect
	case o.Channel == ChannelQR && o.Payment.QRCodeURL != "":
		return NextActionShowQR
	default:
		return NextActionAskUser
	}
}

// Clone returns a deep copy so store callers never share item slices.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = make([]OrderItem, len(o.Items))
	copy(cp.Items, o.Items)
	return &cp
}
