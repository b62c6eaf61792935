package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/ordersys/go-payment-flow/internal/gateway"
	"github.com/ordersys/go-payment-flow/internal/inventory"
	"github.com/ordersys/go-payment-flow/internal/orders"
	"github.com/ordersys/go-payment-flow/internal/redisx"
)

type ItemInput struct {
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Currency       string `json:"currency,omitempty"`
}

type CreateOrderReq struct {
	ExternalID  string         `json:"external_id,omitempty"`
	CustomerRef string         `json:"customer_ref"`
	Channel     orders.Channel `json:"channel"`
	Items       []ItemInput    `json:"items"`
}

type CreateOrderResp struct {
	OrderID       string        `json:"order_id"`
	CorrelationID string        `json:"correlation_id"`
	Status        orders.Status `json:"status"`
	PayURL        string        `json:"pay_url,omitempty"`
	QRCodeURL     string        `json:"qr_code_url,omitempty"`
	ExpiresAt     time.Time     `json:"expires_at"`
}

type OrderSummary struct {
	Items      []orders.OrderItem `json:"items"`
	TotalCents int64              `json:"total_cents"`
	Currency   string             `json:"currency"`
}

type StatusResp struct {
	Status       orders.Status     `json:"status"`
	Order        OrderSummary      `json:"order"`
	GatewayTxnID string            `json:"gateway_transaction_id,omitempty"`
	NextAction   orders.NextAction `json:"next_action"`
	PayURL       string            `json:"pay_url,omitempty"`
	QRCodeURL    string            `json:"qr_code_url,omitempty"`
}

type OrdersHandler struct {
	Store   orders.Store
	Ledger  inventory.Ledger
	Gateway gateway.Adapter
	Redis   *redis.Client // optional create idempotency fast path
	Service string
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getStatus)
	r.Get("/orders", h.getStatusByCorrelation)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orders.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, inventory.ErrUnknownSKU):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, inventory.ErrInsufficientStock):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, gateway.ErrUnavailable):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "payment gateway unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// createOrder: reserve stock, persist the PENDING order, then initiate
// payment. The gateway is called exactly once per order; its result is
// recorded on the order so later status reads never need the gateway.
func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if req.ExternalID != "" && h.Redis != nil {
		idemKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, req.ExternalID)
		if ok, _ := redisx.Exists(ctx, h.Redis, idemKey); ok {
			writeError(w, orders.ErrAlreadyExists)
			return
		}
	}

	items := make([]orders.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, orders.OrderItem{
			SKU:            it.SKU,
			Name:           it.Name,
			Qty:            it.Qty,
			UnitPriceCents: it.UnitPriceCents,
			Currency:       it.Currency,
		})
	}
	ord, err := orders.New(items, req.CustomerRef, req.Channel, req.ExternalID)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.reserveAll(ctx, ord); err != nil {
		writeError(w, err)
		return
	}

	if err := h.Store.Create(ctx, ord); err != nil {
		h.releaseAll(ctx, ord)
		writeError(w, err)
		return
	}

	res, err := h.Gateway.Initiate(ctx, ord)
	if err != nil {
		// order stays PENDING; the client may retry creation under a new
		// external id or wait for reconciliation
		log.Error().Err(err).Str("order_id", ord.ID).Msg("gateway initiate failed")
		writeError(w, err)
		return
	}

	info := orders.PaymentInfo{
		Provider:  res.Provider,
		PayURL:    res.PayURL,
		QRCodeURL: res.QRCodeURL,
		ExpiresAt: res.ExpiresAt,
	}
	if err := h.Store.SetPaymentInfo(ctx, ord.ID, info); err != nil {
		log.Error().Err(err).Str("order_id", ord.ID).Msg("payment info write failed")
	}

	if req.ExternalID != "" && h.Redis != nil {
		idemKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, req.ExternalID)
		_ = h.Redis.Set(ctx, idemKey, ord.ID, redisx.TTLIdempotency).Err()
	}

	log.Info().Str("order_id", ord.ID).Str("correlation_id", ord.CorrelationID).
		Int64("total_cents", ord.TotalCents).Msg("order created")

	writeJSON(w, http.StatusCreated, CreateOrderResp{
		OrderID:       ord.ID,
		CorrelationID: ord.CorrelationID,
		Status:        orders.StatusPending,
		PayURL:        res.PayURL,
		QRCodeURL:     res.QRCodeURL,
		ExpiresAt:     res.ExpiresAt,
	})
}

// reserveAll reserves every line; on failure the lines already reserved are
// rolled back so a rejected create leaves stock untouched.
func (h *OrdersHandler) reserveAll(ctx context.Context, ord *orders.Order) error {
	reserved := make([]orders.OrderItem, 0, len(ord.Items))
	for _, it := range ord.Items {
		if err := h.Ledger.Reserve(ctx, ord.ID, it.SKU, it.Qty); err != nil {
			for _, done := range reserved {
				if relErr := h.Ledger.Release(ctx, ord.ID, done.SKU, done.Qty); relErr != nil {
					log.Error().Err(relErr).Str("order_id", ord.ID).Str("sku", done.SKU).Msg("rollback release failed")
				}
			}
			return err
		}
		reserved = append(reserved, it)
	}
	return nil
}

func (h *OrdersHandler) releaseAll(ctx context.Context, ord *orders.Order) {
	for _, it := range ord.Items {
		if err := h.Ledger.Release(ctx, ord.ID, it.SKU, it.Qty); err != nil {
			log.Error().Err(err).Str("order_id", ord.ID).Str("sku", it.SKU).Msg("release failed")
		}
	}
}

// getStatus reads the order store only. No cache and no gateway call: a
// caller that just received a pointer event is guaranteed to observe the
// write that produced it.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ord, err := h.Store.Get(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResp(ord))
}

func (h *OrdersHandler) getStatusByCorrelation(w http.ResponseWriter, r *http.Request) {
	cid := r.URL.Query().Get("correlation_id")
	if cid == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing correlation_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ord, err := h.Store.GetByCorrelation(ctx, cid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResp(ord))
}

func statusResp(ord *orders.Order) StatusResp {
	return StatusResp{
		Status: ord.Status,
		Order: OrderSummary{
			Items:      ord.Items,
			TotalCents: ord.TotalCents,
			Currency:   ord.Currency,
		},
		GatewayTxnID: ord.GatewayTxnID,
		NextAction:   ord.NextAction(),
		PayURL:       ord.Payment.PayURL,
		QRCodeURL:    ord.Payment.QRCodeURL,
	}
}
