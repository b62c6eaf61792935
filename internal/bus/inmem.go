package bus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const inMemBuffer = 1024

// InMem is an in-process Bus for tests and single-node runs. Every
// subscription gets its own channel and worker pool, so each subscriber
// sees every message (topic fanout, not a shared queue).
type InMem struct {
	mu     sync.RWMutex
	subs   map[string][]chan Message
	g      *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

func NewInMem() *InMem {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	return &InMem{
		subs:   make(map[string][]chan Message),
		g:      g,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (b *InMem) Publish(ctx context.Context, topic string, key, value []byte) error {
	b.mu.RLock()
	chans := b.subs[topic]
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return errors.New("bus closed")
	}

	for _, ch := range chans {
		select {
		case ch <- Message{Key: key, Value: value}:
		case <-ctx.Done():
			return ctx.Err()
		case <-b.ctx.Done():
			return errors.New("bus closed")
		}
	}
	return nil
}

func (b *InMem) Subscribe(topic, group string, workers int, h Handler) error {
	if workers <= 0 {
		workers = 1
	}
	ch := make(chan Message, inMemBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("bus closed")
	}
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	for i := 0; i < workers; i++ {
		b.g.Go(func() error {
			for m := range ch {
				b.deliver(topic, group, m, h)
			}
			return nil
		})
	}
	return nil
}

// deliver retries a failing handler a few times before giving up; the real
// transport redelivers uncommitted messages the same way.
func (b *InMem) deliver(topic, group string, m Message, h Handler) {
	for attempt := 0; attempt < 3; attempt++ {
		if err := h(b.ctx, m); err == nil {
			return
		} else if attempt == 2 {
			log.Error().Err(err).Str("topic", topic).Str("group", group).Msg("handler gave up on message")
			return
		}
		select {
		case <-time.After(10 * time.Millisecond):
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *InMem) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, chans := range b.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	b.mu.Unlock()

	err := b.g.Wait()
	b.cancel()
	return err
}
