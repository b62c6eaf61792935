// Package bus abstracts the notification transport. Delivery is
// at-least-once; consumers must be idempotent.
package bus

import "context"

type Message struct {
	Key   []byte
	Value []byte
}

// Handler returns nil only when the message was processed and may be acked.
type Handler func(ctx context.Context, m Message) error

type Publisher interface {
	// Publish is fire-and-forget from the caller's perspective; an error
	// means the message could not even be handed to the transport.
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Subscriber interface {
	// Subscribe registers h for topic under a consumer group and starts
	// workers delivering to it until the bus closes.
	Subscribe(topic, group string, workers int, h Handler) error
}

type Bus interface {
	Publisher
	Subscriber
	Close() error
}
