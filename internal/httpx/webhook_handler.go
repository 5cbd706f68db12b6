package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// GatewayEventHandler is the reconciliation entry point for pushed
// notifications.
type GatewayEventHandler interface {
	HandleGatewayEvent(ctx context.Context, gatewayPaymentID string) error
}

// WebhookHandler receives Mercado Pago notifications. The gateway retries
// aggressively on non-2xx responses, so every request is acknowledged with
// 200 no matter what happens internally; failures are logged only.
type WebhookHandler struct {
	Reconciler GatewayEventHandler
	Log        *slog.Logger
}

func (h *WebhookHandler) Register(r *chi.Mux) {
	r.Post("/gateway/webhook", h.handle)
}

// webhookBody tolerates both notification shapes: the payment id arrives
// either nested under data.id or as the top-level id, and is sent as a JSON
// number or a string depending on the notification type.
type webhookBody struct {
	ID   flexID `json:"id"`
	Type string `json:"type"`
	Data struct {
		ID flexID `json:"id"`
	} `json:"data"`
}

type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	defer ack(w)

	var body webhookBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.Log.Warn("webhook with undecodable body", slog.String("error", err.Error()))
		return
	}

	paymentID := string(body.Data.ID)
	if paymentID == "" {
		paymentID = string(body.ID)
	}
	if paymentID == "" {
		h.Log.Info("webhook without payment id", slog.String("type", body.Type))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.Reconciler.HandleGatewayEvent(ctx, paymentID); err != nil {
		h.Log.Error("webhook reconciliation failed",
			slog.String("gateway_payment_id", paymentID),
			slog.String("error", err.Error()))
	}
}

func ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}
