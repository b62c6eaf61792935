package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ordersys/go-payment-flow/internal/bus"
	kafkax "github.com/ordersys/go-payment-flow/internal/kafka"
	"github.com/ordersys/go-payment-flow/internal/orders"
)

// DeadLetter receives callback events the resolver could not process after
// exhausting retries. Events land here with their full payload for manual
// reconciliation; nothing is silently discarded.
type DeadLetter interface {
	Send(ctx context.Context, ev orders.Envelope, cause error) error
}

type deadEnvelope struct {
	Event    orders.Envelope `json:"event"`
	Cause    string          `json:"cause"`
	DeadAt   time.Time       `json:"dead_at"`
	Consumer string          `json:"consumer"`
}

// BusDeadLetter republishes the failed event to the dead-letter topic.
type BusDeadLetter struct {
	Bus      bus.Publisher
	Consumer string
}

func (d *BusDeadLetter) Send(ctx context.Context, ev orders.Envelope, cause error) error {
	body := kafkax.MustMarshal(deadEnvelope{
		Event:    ev,
		Cause:    cause.Error(),
		DeadAt:   time.Now().UTC(),
		Consumer: d.Consumer,
	})
	log.Error().Err(cause).Str("event_id", ev.EventID).Str("correlation_id", ev.CorrelationID).
		Msg("routing callback event to dead letter")
	return d.Bus.Publish(ctx, orders.TopicCallbackDead, orders.PartitionKey(ev.CorrelationID), body)
}

// MemDeadLetter collects dead events in memory for tests.
type MemDeadLetter struct {
	mu     sync.Mutex
	events []orders.Envelope
}

func (d *MemDeadLetter) Send(_ context.Context, ev orders.Envelope, _ error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return nil
}

func (d *MemDeadLetter) Events() []orders.Envelope {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]orders.Envelope, len(d.events))
	copy(out, d.events)
	return out
}
