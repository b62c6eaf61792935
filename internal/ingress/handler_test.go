package ingress

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ordersys/go-payment-flow/internal/bus"
	"github.com/ordersys/go-payment-flow/internal/httpx"
	"github.com/ordersys/go-payment-flow/internal/orders"
)

type captureBus struct {
	mu   sync.Mutex
	msgs map[string][]bus.Message
}

func newCaptureBus() *captureBus {
	return &captureBus{msgs: make(map[string][]bus.Message)}
}

func (b *captureBus) Publish(_ context.Context, topic string, key, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs[topic] = append(b.msgs[topic], bus.Message{Key: key, Value: value})
	return nil
}

func (b *captureBus) published(topic string) []bus.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bus.Message(nil), b.msgs[topic]...)
}

func setup() (*captureBus, http.Handler) {
	cb := newCaptureBus()
	r := httpx.NewRouter()
	h := &Handler{Bus: cb, Service: "callback-test"}
	h.Register(r)
	return cb, r
}

func decodeCallback(t *testing.T, m bus.Message) orders.CallbackEventPayload {
	t.Helper()
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(m.Value, &env))
	require.Equal(t, orders.EventPaymentCallback, env.EventType)
	var p orders.CallbackEventPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	return p
}

func TestNotifyPublishesCallback(t *testing.T) {
	cb, r := setup()

	req := httptest.NewRequest(http.MethodGet, "/callback/stubpay?order_id=o-123", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "00", body["RspCode"])

	msgs := cb.published(orders.TopicPaymentCallback)
	require.Len(t, msgs, 1)
	p := decodeCallback(t, msgs[0])
	require.Equal(t, "o-123", p.OrderID)
	require.False(t, p.ReceivedAt.IsZero())
	require.Equal(t, []byte("o-123"), msgs[0].Key)
}

func TestNotifyMissingOrderID(t *testing.T) {
	cb, r := setup()

	req := httptest.NewRequest(http.MethodGet, "/callback/stubpay", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, cb.published(orders.TopicPaymentCallback))
}

// Both redirect legs publish the same normalized event; the gateway firing
// the notify leg as well simply produces a duplicate for the resolver.
func TestRedirectLegsPublish(t *testing.T) {
	cb, r := setup()

	for _, path := range []string{
		"/return/stubpay?order_id=o-9",
		"/cancel/stubpay?order_id=o-9",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	msgs := cb.published(orders.TopicPaymentCallback)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		require.Equal(t, "o-9", decodeCallback(t, m).OrderID)
	}
}
