package bus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type collector struct {
	mu   sync.Mutex
	msgs []Message
}

func (c *collector) handle(_ context.Context, m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func TestPublishSubscribe(t *testing.T) {
	ctx := context.Background()
	b := NewInMem()
	c := &collector{}
	require.NoError(t, b.Subscribe("t1", "g1", 2, c.handle))

	require.NoError(t, b.Publish(ctx, "t1", []byte("k1"), []byte("v1")))
	require.NoError(t, b.Publish(ctx, "t1", []byte("k2"), []byte("v2")))
	require.NoError(t, b.Publish(ctx, "other", []byte("k3"), []byte("v3")))

	require.NoError(t, b.Close())
	require.Equal(t, 2, c.count())
}

// Each subscription is an independent consumer: both see every message.
func TestFanout(t *testing.T) {
	ctx := context.Background()
	b := NewInMem()
	a, c := &collector{}, &collector{}
	require.NoError(t, b.Subscribe("t", "g1", 1, a.handle))
	require.NoError(t, b.Subscribe("t", "g2", 1, c.handle))

	require.NoError(t, b.Publish(ctx, "t", nil, []byte("v")))
	require.NoError(t, b.Close())

	require.Equal(t, 1, a.count())
	require.Equal(t, 1, c.count())
}

func TestRedeliveryOnHandlerError(t *testing.T) {
	ctx := context.Background()
	b := NewInMem()

	var mu sync.Mutex
	attempts := 0
	require.NoError(t, b.Subscribe("t", "g", 1, func(_ context.Context, _ Message) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	}))

	require.NoError(t, b.Publish(ctx, "t", nil, []byte("v")))
	require.NoError(t, b.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, attempts)
}

func TestPublishAfterClose(t *testing.T) {
	b := NewInMem()
	require.NoError(t, b.Close())
	require.Error(t, b.Publish(context.Background(), "t", nil, []byte("v")))
	require.NoError(t, b.Close()) // second close is harmless
}
