package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ordersys/go-payment-flow/internal/gateway"
	"github.com/ordersys/go-payment-flow/internal/inventory"
	"github.com/ordersys/go-payment-flow/internal/orders"
)

type env struct {
	store   *orders.MemStore
	ledger  *inventory.MemLedger
	gateway *gateway.Stub
	router  http.Handler
}

func newEnv(t *testing.T, stock map[string]int) *env {
	t.Helper()
	e := &env{
		store:   orders.NewMemStore(),
		ledger:  inventory.NewMemLedger(stock),
		gateway: gateway.NewStub("stubpay", "https://pay.example"),
	}
	r := NewRouter()
	h := &OrdersHandler{
		Store:   e.store,
		Ledger:  e.ledger,
		Gateway: e.gateway,
		Service: "api-test",
	}
	h.Register(r)
	e.router = r
	return e
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func createReq(sku string, qty int, price int64) CreateOrderReq {
	return CreateOrderReq{
		CustomerRef: "cust-1",
		Channel:     orders.ChannelRedirect,
		Items:       []ItemInput{{SKU: sku, Name: "item " + sku, Qty: qty, UnitPriceCents: price}},
	}
}

func (e *env) stock(t *testing.T, sku string) int {
	t.Helper()
	n, err := e.ledger.Stock(context.Background(), sku)
	require.NoError(t, err)
	return n
}

func TestCreateOrder(t *testing.T) {
	e := newEnv(t, map[string]int{"X": 5})

	rec := e.do(t, http.MethodPost, "/orders", createReq("X", 1, 10000))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp CreateOrderResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, orders.StatusPending, resp.Status)
	require.NotEmpty(t, resp.OrderID)
	require.NotEmpty(t, resp.CorrelationID)
	require.Contains(t, resp.PayURL, resp.OrderID)
	require.False(t, resp.ExpiresAt.IsZero())

	require.Equal(t, 4, e.stock(t, "X"))
}

// Scenario D: reserving more than available leaves stock untouched and
// creates no order.
func TestCreateOrderInsufficientStock(t *testing.T) {
	e := newEnv(t, map[string]int{"X": 5})

	rec := e.do(t, http.MethodPost, "/orders", createReq("X", 10, 10000))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 5, e.stock(t, "X"))
}

// A multi-line order that fails on the second SKU must roll the first
// reservation back.
func TestCreateOrderPartialReserveRollsBack(t *testing.T) {
	e := newEnv(t, map[string]int{"X": 5, "Y": 0})

	req := CreateOrderReq{
		CustomerRef: "cust-1",
		Channel:     orders.ChannelRedirect,
		Items: []ItemInput{
			{SKU: "X", Name: "item X", Qty: 2, UnitPriceCents: 100},
			{SKU: "Y", Name: "item Y", Qty: 1, UnitPriceCents: 100},
		},
	}
	rec := e.do(t, http.MethodPost, "/orders", req)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 5, e.stock(t, "X"))
}

func TestCreateOrderValidation(t *testing.T) {
	e := newEnv(t, map[string]int{"X": 5})

	rec := e.do(t, http.MethodPost, "/orders", createReq("X", 0, 10000))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/orders", CreateOrderReq{CustomerRef: "c", Channel: orders.ChannelRedirect})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrderDuplicateExternalID(t *testing.T) {
	e := newEnv(t, map[string]int{"X": 5})

	req := createReq("X", 1, 10000)
	req.ExternalID = "ext-1"
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/orders", req).Code)
	require.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/orders", req).Code)

	// the rejected duplicate must not hold stock
	require.Equal(t, 4, e.stock(t, "X"))
}

func TestGetStatus(t *testing.T) {
	e := newEnv(t, map[string]int{"X": 5})

	rec := e.do(t, http.MethodPost, "/orders", createReq("X", 2, 1500))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created CreateOrderResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = e.do(t, http.MethodGet, "/orders/"+created.OrderID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, orders.StatusPending, resp.Status)
	require.Equal(t, int64(3000), resp.Order.TotalCents)
	require.Len(t, resp.Order.Items, 1)
	require.Equal(t, orders.NextActionRedirect, resp.NextAction)
	require.Empty(t, resp.GatewayTxnID)
}

func TestGetStatusByCorrelation(t *testing.T) {
	e := newEnv(t, map[string]int{"X": 5})

	rec := e.do(t, http.MethodPost, "/orders", createReq("X", 1, 1500))
	var created CreateOrderResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = e.do(t, http.MethodGet, "/orders?correlation_id="+created.CorrelationID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/orders?correlation_id=missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStatusNotFound(t *testing.T) {
	e := newEnv(t, map[string]int{"X": 5})
	rec := e.do(t, http.MethodGet, "/orders/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// After the resolver commits a terminal state, the endpoint reflects it
// with next_action NONE and the gateway transaction id.
func TestGetStatusAfterResolution(t *testing.T) {
	e := newEnv(t, map[string]int{"X": 5})

	rec := e.do(t, http.MethodPost, "/orders", createReq("X", 1, 1500))
	var created CreateOrderResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	_, err := e.store.Transition(context.Background(), created.OrderID, orders.StatusSuccess, "txn-42")
	require.NoError(t, err)

	rec = e.do(t, http.MethodGet, "/orders/"+created.OrderID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, orders.StatusSuccess, resp.Status)
	require.Equal(t, "txn-42", resp.GatewayTxnID)
	require.Equal(t, orders.NextActionNone, resp.NextAction)
}

func TestCreateOrderGatewayDown(t *testing.T) {
	e := newEnv(t, map[string]int{"X": 5})
	e.gateway.FailNext(1)

	rec := e.do(t, http.MethodPost, "/orders", createReq("X", 1, 10000))
	require.Equal(t, http.StatusBadGateway, rec.Code)
}
