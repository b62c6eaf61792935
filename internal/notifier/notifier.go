// Package notifier consumes status.updated pointer events on the sales
// side. The pointer deliberately carries no status, so the notifier always
// re-queries the status endpoint and acts on the committed state.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/ordersys/go-payment-flow/internal/bus"
	kafkax "github.com/ordersys/go-payment-flow/internal/kafka"
	"github.com/ordersys/go-payment-flow/internal/orders"
)

type Notifier struct {
	Client  *http.Client
	BaseURL string // status query endpoint base
}

type statusView struct {
	Status       orders.Status `json:"status"`
	GatewayTxnID string        `json:"gateway_transaction_id"`
}

func (n *Notifier) HandleStatusUpdated(ctx context.Context, m bus.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventStatusUpdated {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.NotificationPointerPayload](env.Payload)
	if err != nil {
		return err
	}

	view, err := n.fetchStatus(ctx, p.OrderID)
	if err != nil {
		log.Warn().Err(err).Str("order_id", p.OrderID).Msg("status re-query failed")
		return err
	}

	ev := log.Info()
	if view.Status == orders.StatusFailed {
		ev = log.Warn()
	}
	ev.Str("order_id", p.OrderID).Str("correlation_id", p.CorrelationID).
		Str("status", string(view.Status)).Msg("payment outcome")
	return nil
}

func (n *Notifier) fetchStatus(ctx context.Context, orderID string) (*statusView, error) {
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/orders/%s", n.BaseURL, orderID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %d for order %s", resp.StatusCode, orderID)
	}

	var view statusView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, err
	}
	return &view, nil
}
