// Package ingress normalizes inbound gateway callbacks. The browser
// redirect legs and the server-to-server notification carry the same
// semantic event; all of them collapse into one CallbackEvent on the bus.
// No deduplication happens here, the resolver owns that.
package ingress

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ordersys/go-payment-flow/internal/bus"
	kafkax "github.com/ordersys/go-payment-flow/internal/kafka"
	"github.com/ordersys/go-payment-flow/internal/orders"
)

type Handler struct {
	Bus     bus.Publisher
	Service string
}

func (h *Handler) Register(r *chi.Mux) {
	r.Get("/callback/{provider}", h.notify)
	r.Get("/return/{provider}", h.returnRedirect)
	r.Get("/cancel/{provider}", h.cancelRedirect)
}

// notify handles the provider's server-to-server notification (IPN). The
// response codes follow the VNPay-style confirm contract.
func (h *Handler) notify(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"RspCode": "99", "Message": "Missing order_id"})
		return
	}
	provider := chi.URLParam(r, "provider")
	log.Info().Str("order_id", orderID).Str("provider", provider).Msg("gateway notification received")

	if err := h.publishCallback(r.Context(), orderID, r.URL.RawQuery); err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("callback publish failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"RspCode": "99", "Message": "Internal Error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"RspCode": "00", "Message": "Confirm Success"})
}

// returnRedirect handles the browser coming back after the customer
// completed payment. The page never claims an outcome; the authoritative
// status lands via the resolver.
func (h *Handler) returnRedirect(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, "Payment received. We are confirming your order.")
}

func (h *Handler) cancelRedirect(w http.ResponseWriter, r *http.Request) {
	h.redirect(w, r, "Payment was not completed. Your order will be updated shortly.")
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, message string) {
	orderID := r.URL.Query().Get("order_id")
	provider := chi.URLParam(r, "provider")
	log.Info().Str("order_id", orderID).Str("provider", provider).Msg("gateway redirect received")

	if orderID != "" {
		// fire-and-forget: the user page renders regardless
		if err := h.publishCallback(r.Context(), orderID, r.URL.RawQuery); err != nil {
			log.Error().Err(err).Str("order_id", orderID).Msg("callback publish failed")
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<html><body><p>" + message + "</p></body></html>"))
}

func (h *Handler) publishCallback(ctx context.Context, orderID, rawQuery string) error {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventPaymentCallback,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		CorrelationID: orderID,
		Payload: kafkax.MustMarshal(orders.CallbackEventPayload{
			OrderID:    orderID,
			ReceivedAt: time.Now().UTC(),
			RawPayload: rawQuery,
		}),
	}
	return h.Bus.Publish(ctx, orders.TopicPaymentCallback, orders.PartitionKey(orderID), kafkax.MustMarshal(ev))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
