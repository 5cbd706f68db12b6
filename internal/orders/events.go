package orders

import (
	"encoding/json"
	"time"
)

const (
	EventPaymentApproved = "PaymentApproved"
	EventPaymentClosed   = "PaymentClosed"
	EventAccessGranted   = "AccessGranted"
	EventGrantFailed     = "GrantFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type PaymentApprovedPayload struct {
	OrderID          string `json:"order_id"`
	UserID           int64  `json:"user_id"`
	PlanID           string `json:"plan_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	AmountCents      int64  `json:"amount_cents"`
}

// PaymentClosedPayload covers both rejected and expired finalizations.
type PaymentClosedPayload struct {
	OrderID          string `json:"order_id"`
	UserID           int64  `json:"user_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	FinalStatus      Status `json:"final_status"`
	GatewayStatus    string `json:"gateway_status"`
}

type AccessGrantedPayload struct {
	OrderID string `json:"order_id"`
	UserID  int64  `json:"user_id"`
	PlanID  string `json:"plan_id"`
}

type GrantFailedPayload struct {
	OrderID string `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Reason  string `json:"reason"`
}
