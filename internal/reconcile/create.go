package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelcoelhox/go-vip-access/internal/gateway"
	"github.com/rafaelcoelhox/go-vip-access/internal/orders"
)

// IntentCreator opens payment intents at the gateway.
type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, req gateway.CreateIntentRequest) (*gateway.PaymentIntent, error)
}

type OpenRequest struct {
	UserID      int64
	PlanID      string
	AmountCents int64
	Description string
	PayerEmail  string
}

// OpenOrder persists a new order and opens its payment intent. The order is
// created first so a crash mid-flight leaves a record; a failed creation
// attempt closes it as error and the user starts over with a new order.
func (c *Coordinator) OpenOrder(ctx context.Context, req OpenRequest) (*orders.Order, *gateway.PaymentIntent, error) {
	o := &orders.Order{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		PlanID:      req.PlanID,
		AmountCents: req.AmountCents,
		Status:      orders.StatusCreated,
	}
	if err := c.Store.Create(ctx, o); err != nil {
		return nil, nil, err
	}

	intent, err := c.Intents.CreatePaymentIntent(ctx, gateway.CreateIntentRequest{
		Amount:      decimal.NewFromInt(req.AmountCents).Div(decimal.NewFromInt(100)),
		Description: req.Description,
		OrderID:     o.ID,
		PayerEmail:  req.PayerEmail,
	})
	if err != nil {
		if serr := c.Store.SetStatus(ctx, o.ID, orders.StatusError); serr != nil {
			c.Log.Error("close failed order", slog.String("order_id", o.ID), slog.String("error", serr.Error()))
		}
		return nil, nil, fmt.Errorf("create payment intent: %w", err)
	}

	if err := c.Store.AttachGatewayPayment(ctx, o.ID, intent.GatewayPaymentID); err != nil {
		return nil, nil, err
	}
	o.GatewayPaymentID = intent.GatewayPaymentID
	o.Status = orders.StatusAwaitingPayment
	return o, intent, nil
}
