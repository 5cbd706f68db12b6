// Package reconcile converges payment confirmations arriving through the
// user-triggered status poll and the gateway webhook onto a single idempotent
// state transition per order.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rafaelcoelhox/go-vip-access/internal/gateway"
	"github.com/rafaelcoelhox/go-vip-access/internal/grant"
	"github.com/rafaelcoelhox/go-vip-access/internal/orders"
	"github.com/rafaelcoelhox/go-vip-access/internal/redisx"
)

var (
	// ErrOrderNotReady: no payment intent exists yet for this order.
	ErrOrderNotReady = errors.New("order has no payment intent yet")

	// ErrNotOwner: the poll caller is not the user the order belongs to.
	ErrNotOwner = errors.New("order belongs to another user")
)

// StatusFetcher is the authoritative payment status source. Both trigger
// paths query it before transitioning, so the outcome is deterministic given
// the gateway's current truth.
type StatusFetcher interface {
	GetPaymentStatus(ctx context.Context, gatewayPaymentID string) (gateway.NormalizedStatus, error)
}

// Result describes what a reconciliation pass observed and did.
type Result struct {
	Status       orders.Status
	Transitioned bool // this call won the compare-and-set
	Granted      bool
	GrantErr     error // payment confirmed but artifact undelivered
}

// Coordinator is the single authority for order status transitions and grant
// invocation. All races are resolved through the store's conditional writes;
// no in-process lock is held across gateway or granter calls.
type Coordinator struct {
	Store   orders.Store
	Gateway StatusFetcher
	Intents IntentCreator
	Granter grant.Granter
	Events  EventPublisher
	Cache   *redis.Client // optional finalized-status cache
	Log     *slog.Logger
}

// CheckOrder is the poll trigger: the user explicitly asked "confirm my
// payment". Ownership is verified so a forwarded order id cannot be probed by
// someone else.
func (c *Coordinator) CheckOrder(ctx context.Context, orderID string, userID int64) (*Result, error) {
	o, err := c.Store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotOwner
	}
	return c.reconcile(ctx, o)
}

// HandleGatewayEvent is the webhook trigger. A payment id with no matching
// order is acknowledged and discarded; it may belong to an unrelated or stale
// payment.
func (c *Coordinator) HandleGatewayEvent(ctx context.Context, gatewayPaymentID string) error {
	o, err := c.Store.FindByGatewayPaymentID(ctx, gatewayPaymentID)
	if errors.Is(err, orders.ErrNotFound) {
		c.Log.Info("webhook for unknown payment discarded",
			slog.String("gateway_payment_id", gatewayPaymentID))
		return nil
	}
	if err != nil {
		return err
	}
	_, err = c.reconcile(ctx, o)
	return err
}

// reconcile is the one code path both triggers share: query the gateway, then
// attempt the guarded transition out of awaiting_payment.
func (c *Coordinator) reconcile(ctx context.Context, o *orders.Order) (*Result, error) {
	if o.Status.Terminal() {
		res := &Result{Status: o.Status, Granted: o.Granted}
		// A crash between the status transition and the grant leaves the order
		// approved but ungranted; any later trigger re-drives the grant.
		if o.Status == orders.StatusApproved && !o.Granted {
			res.GrantErr = c.runGrant(ctx, o)
			res.Granted = res.GrantErr == nil
		}
		return res, nil
	}

	if o.Status == orders.StatusCreated || o.GatewayPaymentID == "" {
		return nil, ErrOrderNotReady
	}

	gwStatus, err := c.Gateway.GetPaymentStatus(ctx, o.GatewayPaymentID)
	if err != nil {
		// No partial transition: the order is untouched and the caller may retry.
		return nil, err
	}

	switch gwStatus {
	case gateway.StatusPending, gateway.StatusProcessing:
		return &Result{Status: orders.StatusAwaitingPayment}, nil

	case gateway.StatusApproved:
		return c.finalizeApproved(ctx, o)

	default:
		return c.finalizeClosed(ctx, o, gwStatus)
	}
}

func (c *Coordinator) finalizeApproved(ctx context.Context, o *orders.Order) (*Result, error) {
	won, err := c.Store.CompareAndSetStatus(ctx, o.ID, orders.StatusAwaitingPayment, orders.StatusApproved)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another execution already finalized this order; stop without
		// side effects and report whatever it decided.
		return c.observe(ctx, o.ID)
	}

	o.Status = orders.StatusApproved
	c.Events.PaymentApproved(o)
	c.cacheStatus(ctx, o.ID, orders.StatusApproved)

	res := &Result{Status: orders.StatusApproved, Transitioned: true}
	res.GrantErr = c.runGrant(ctx, o)
	res.Granted = res.GrantErr == nil
	return res, nil
}

func (c *Coordinator) finalizeClosed(ctx context.Context, o *orders.Order, gwStatus gateway.NormalizedStatus) (*Result, error) {
	next := orders.StatusRejected
	if gwStatus == gateway.StatusExpired {
		next = orders.StatusExpired
	}
	won, err := c.Store.CompareAndSetStatus(ctx, o.ID, orders.StatusAwaitingPayment, next)
	if err != nil {
		return nil, err
	}
	if !won {
		return c.observe(ctx, o.ID)
	}

	o.Status = next
	c.Events.PaymentClosed(o, gwStatus)
	c.cacheStatus(ctx, o.ID, next)
	return &Result{Status: next, Transitioned: true}, nil
}

// runGrant invokes the granter and then separately marks granted. A grant
// failure never rolls back the confirmed payment; it is published for the
// re-drive worker and retried later.
func (c *Coordinator) runGrant(ctx context.Context, o *orders.Order) error {
	if err := c.Granter.Grant(ctx, o); err != nil {
		c.Log.Error("grant failed after confirmed payment",
			slog.String("order_id", o.ID),
			slog.Int64("user_id", o.UserID),
			slog.String("error", err.Error()))
		c.Events.GrantFailed(o, err.Error())
		return err
	}
	ok, err := c.Store.MarkGranted(ctx, o.ID)
	if err != nil {
		c.Log.Error("mark granted failed", slog.String("order_id", o.ID), slog.String("error", err.Error()))
		return err
	}
	if ok {
		c.Events.AccessGranted(o)
	}
	return nil
}

// RedriveUngranted sweeps orders stuck in approved with no issued artifact and
// retries the grant. Returns how many grants completed.
func (c *Coordinator) RedriveUngranted(ctx context.Context, limit int) (int, error) {
	stuck, err := c.Store.ListUngranted(ctx, limit)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, o := range stuck {
		if err := c.runGrant(ctx, o); err == nil {
			done++
		}
	}
	return done, nil
}

// RedriveOrder retries the grant for one order, if it still needs it.
func (c *Coordinator) RedriveOrder(ctx context.Context, orderID string) error {
	o, err := c.Store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != orders.StatusApproved || o.Granted {
		return nil
	}
	return c.runGrant(ctx, o)
}

// observe re-reads the order for reporting only, after losing a race.
func (c *Coordinator) observe(ctx context.Context, orderID string) (*Result, error) {
	cur, err := c.Store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &Result{Status: cur.Status, Granted: cur.Granted}, nil
}

func (c *Coordinator) cacheStatus(ctx context.Context, orderID string, s orders.Status) {
	if c.Cache == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if err := c.Cache.Set(ctx, key, string(s), redisx.TTLStatusCache).Err(); err != nil {
		c.Log.Warn("status cache write failed", slog.String("order_id", orderID), slog.String("error", err.Error()))
	}
}
