package bus

import (
	"context"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ordersys/go-payment-flow/internal/kafka"
)

const producerBuffer = 1024

// Kafka adapts the per-topic producer/consumer pair to the Bus interface.
// Producers are created lazily per topic and share the bus lifetime.
type Kafka struct {
	brokers []string

	mu        sync.Mutex
	producers map[string]*kafkax.Producer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewKafka(brokers []string) *Kafka {
	ctx, cancel := context.WithCancel(context.Background())
	return &Kafka{
		brokers:   brokers,
		producers: make(map[string]*kafkax.Producer),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (b *Kafka) producer(topic string) *kafkax.Producer {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.producers[topic]
	if !ok {
		p = kafkax.NewProducer(b.brokers, topic, producerBuffer)
		p.Start(b.ctx)
		b.producers[topic] = p
	}
	return p
}

func (b *Kafka) Publish(_ context.Context, topic string, key, value []byte) error {
	b.producer(topic).Publish(key, value)
	return nil
}

func (b *Kafka) Subscribe(topic, group string, workers int, h Handler) error {
	c := kafkax.NewConsumer(b.brokers, group, topic, workers)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		_ = c.Start(b.ctx, func(ctx context.Context, m kafkago.Message) error {
			return h(ctx, Message{Key: m.Key, Value: m.Value})
		})
	}()
	return nil
}

func (b *Kafka) Close() error {
	b.cancel()
	b.mu.Lock()
	for _, p := range b.producers {
		p.WaitClosed()
	}
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}
