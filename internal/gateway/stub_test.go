package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ordersys/go-payment-flow/internal/orders"
)

func newOrder(t *testing.T, channel orders.Channel) *orders.Order {
	t.Helper()
	o, err := orders.New(
		[]orders.OrderItem{{SKU: "SKU-1", Name: "widget", Qty: 1, UnitPriceCents: 10000}},
		"cust-1", channel, "",
	)
	require.NoError(t, err)
	return o
}

func TestInitiateRedirectChannel(t *testing.T) {
	ctx := context.Background()
	s := NewStub("stubpay", "https://pay.example")
	o := newOrder(t, orders.ChannelRedirect)

	res, err := s.Initiate(ctx, o)
	require.NoError(t, err)
	require.Equal(t, "stubpay", res.Provider)
	require.Contains(t, res.PayURL, o.ID)
	require.Empty(t, res.QRCodeURL)
	require.False(t, res.ExpiresAt.IsZero())
}

func TestInitiateQRChannel(t *testing.T) {
	ctx := context.Background()
	s := NewStub("stubpay", "https://pay.example")
	o := newOrder(t, orders.ChannelQR)

	res, err := s.Initiate(ctx, o)
	require.NoError(t, err)
	require.Contains(t, res.QRCodeURL, o.ID)
	require.Empty(t, res.PayURL)
}

// Retried initiate for the same correlation id must not open a second
// transaction.
func TestInitiateAtMostOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStub("stubpay", "https://pay.example")
	o := newOrder(t, orders.ChannelRedirect)

	first, err := s.Initiate(ctx, o)
	require.NoError(t, err)
	second, err := s.Initiate(ctx, o)
	require.NoError(t, err)

	require.Equal(t, first.PayURL, second.PayURL)
	require.Equal(t, first.ExpiresAt, second.ExpiresAt)
	require.Len(t, s.byOrder, 1)
}

func TestQueryIsPendingUntilSettled(t *testing.T) {
	ctx := context.Background()
	s := NewStub("stubpay", "https://pay.example")
	o := newOrder(t, orders.ChannelRedirect)

	// unknown order: nothing terminal to report
	rec, err := s.Query(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, rec.Status)

	_, err = s.Initiate(ctx, o)
	require.NoError(t, err)

	rec, err = s.Query(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, rec.Status)
	require.Equal(t, o.TotalCents, rec.AmountCents)

	require.NoError(t, s.Settle(o.ID, StatusSuccess))

	rec, err = s.Query(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, rec.Status)
	require.NotEmpty(t, rec.TransactionID)
	require.False(t, rec.PaidAt.IsZero())

	// query stays repeat-safe
	again, err := s.Query(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, rec.TransactionID, again.TransactionID)
}

func TestFailNext(t *testing.T) {
	ctx := context.Background()
	s := NewStub("stubpay", "https://pay.example")
	s.FailNext(2)

	_, err := s.Query(ctx, "any")
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = s.Query(ctx, "any")
	require.ErrorIs(t, err, ErrUnavailable)
	_, err = s.Query(ctx, "any")
	require.NoError(t, err)
}

func TestSettleUnknownOrder(t *testing.T) {
	s := NewStub("stubpay", "https://pay.example")
	require.Error(t, s.Settle("missing", StatusSuccess))
}
