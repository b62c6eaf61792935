// Package resolver turns raw gateway callbacks into authoritative order
// state. It never trusts event content: every callback triggers a fresh
// gateway query, and correctness under duplicate or racing events rests on
// the store transition and ledger release both being idempotent.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ordersys/go-payment-flow/internal/bus"
	"github.com/ordersys/go-payment-flow/internal/gateway"
	"github.com/ordersys/go-payment-flow/internal/inventory"
	kafkax "github.com/ordersys/go-payment-flow/internal/kafka"
	"github.com/ordersys/go-payment-flow/internal/orders"
)

const (
	defaultQueryTimeout = 3 * time.Second
	maxQueryRetries     = 2 // 3 attempts total
)

// Deduper is an optional fast path that short-circuits events already
// processed. Skipping it is safe, only slower: the transition itself is
// idempotent.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

type Service struct {
	Store   orders.Store
	Ledger  inventory.Ledger
	Gateway gateway.Adapter
	Bus     bus.Publisher
	Dead    DeadLetter
	Dedup   Deduper // optional
	Service string

	QueryTimeout time.Duration
	// NewBackoff overrides the retry policy; tests use a zero-interval one.
	NewBackoff func() backoff.BackOff
}

// HandleCallback processes one payment.callback event. It returns an error
// only for undecodable input; everything else is resolved, dropped with a
// log, or dead-lettered, so the bus offset always advances.
func (s *Service) HandleCallback(ctx context.Context, m bus.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventPaymentCallback {
		return nil
	}

	if s.Dedup != nil {
		if seen, err := s.Dedup.Seen(ctx, env.EventID); err == nil && seen {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.CallbackEventPayload](env.Payload)
	if err != nil {
		return err
	}

	rec, err := s.queryGateway(ctx, p.OrderID)
	if err != nil {
		// retries exhausted; keep the full event for manual reconciliation
		if dlErr := s.Dead.Send(ctx, env, err); dlErr != nil {
			return dlErr
		}
		return nil
	}

	mapped, ok := mapStatus(rec.Status)
	if !ok {
		// nothing terminal to apply yet; a later callback will resolve it
		log.Debug().Str("order_id", p.OrderID).Str("gateway_status", string(rec.Status)).
			Msg("callback dropped, gateway not terminal")
		return nil
	}

	ord, err := s.Store.Transition(ctx, p.OrderID, mapped, rec.TransactionID)
	switch {
	case errors.Is(err, orders.ErrInvalidTransition):
		// reconciliation anomaly: the store is already terminal with a
		// different outcome; log and move on
		log.Warn().Str("order_id", p.OrderID).Str("target", string(mapped)).
			Msg("non-monotonic transition attempt ignored")
		return nil
	case errors.Is(err, orders.ErrNotFound):
		log.Warn().Str("order_id", p.OrderID).Msg("callback for unknown order")
		return s.Dead.Send(ctx, env, err)
	case err != nil:
		return err
	}

	if mapped == orders.StatusFailed || mapped == orders.StatusCancelled {
		s.releaseAll(ctx, ord)
	}

	// pointer only after the store write is committed, and never with status
	s.publishPointer(ctx, ord)

	if s.Dedup != nil {
		if err := s.Dedup.Mark(ctx, env.EventID); err != nil {
			log.Warn().Err(err).Str("event_id", env.EventID).Msg("dedup mark failed")
		}
	}

	log.Info().Str("order_id", ord.ID).Str("status", string(ord.Status)).
		Str("gateway_txn_id", ord.GatewayTxnID).Msg("callback resolved")
	return nil
}

func (s *Service) queryGateway(ctx context.Context, orderID string) (*gateway.Record, error) {
	var rec *gateway.Record
	op := func() error {
		timeout := s.QueryTimeout
		if timeout <= 0 {
			timeout = defaultQueryTimeout
		}
		qctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		r, err := s.Gateway.Query(qctx, orderID)
		if err != nil {
			return err
		}
		rec = r
		return nil
	}

	var b backoff.BackOff
	if s.NewBackoff != nil {
		b = s.NewBackoff()
	} else {
		b = backoff.NewExponentialBackOff()
	}
	b = backoff.WithMaxRetries(backoff.WithContext(b, ctx), maxQueryRetries)

	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("order_id", orderID).Dur("retry_in", wait).Msg("gateway query failed")
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) releaseAll(ctx context.Context, ord *orders.Order) {
	for _, it := range ord.Items {
		if err := s.Ledger.Release(ctx, ord.ID, it.SKU, it.Qty); err != nil {
			log.Error().Err(err).Str("order_id", ord.ID).Str("sku", it.SKU).Msg("reservation release failed")
		}
	}
}

func (s *Service) publishPointer(ctx context.Context, ord *orders.Order) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventStatusUpdated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Service,
		CorrelationID: ord.CorrelationID,
		Payload: kafkax.MustMarshal(orders.NotificationPointerPayload{
			OrderID:       ord.ID,
			CorrelationID: ord.CorrelationID,
			ResolvedAt:    time.Now().UTC(),
		}),
	}
	if err := s.Bus.Publish(ctx, orders.TopicStatusUpdated, orders.PartitionKey(ord.ID), kafkax.MustMarshal(ev)); err != nil {
		log.Error().Err(err).Str("order_id", ord.ID).Msg("pointer publish failed")
	}
}

func mapStatus(st gateway.Status) (orders.Status, bool) {
	switch st {
	case gateway.StatusSuccess:
		return orders.StatusSuccess, true
	case gateway.StatusFailed:
		return orders.StatusFailed, true
	case gateway.StatusCancelled:
		return orders.StatusCancelled, true
	default:
		return "", false
	}
}
