package orders

import "time"

// Order is a single purchase attempt. The amount is snapshotted from the plan
// catalog at creation time and never changes. GatewayPaymentID is empty until
// the payment intent is created at the gateway, and is set at most once.
type Order struct {
	ID               string
	UserID           int64
	PlanID           string
	AmountCents      int64
	GatewayPaymentID string
	Status           Status
	Granted          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
