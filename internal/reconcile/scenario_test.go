package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rafaelcoelhox/go-vip-access/internal/gateway"
	"github.com/rafaelcoelhox/go-vip-access/internal/orders"
	"github.com/rafaelcoelhox/go-vip-access/internal/plans"
)

// Full purchase lifecycle: checkout opens the order, an early poll finds the
// payment still pending, the gateway flips to approved, the webhook finalizes
// and grants, and every later trigger is a no-op.
func TestPurchaseLifecycle(t *testing.T) {
	ctx := context.Background()
	store := orders.NewMemoryStore()

	plan, ok := plans.Get("vip7")
	require.True(t, ok)
	require.Equal(t, int64(990), plan.PriceCents())

	intents := &fakeIntents{}
	gw := &fakeGateway{status: gateway.StatusPending}
	gr := &fakeGranter{}
	ev := &recordingEvents{}
	c := &Coordinator{Store: store, Gateway: gw, Intents: intents, Granter: gr, Events: ev, Log: testLogger()}

	o, intent, err := c.OpenOrder(ctx, OpenRequest{
		UserID:      42,
		PlanID:      plan.ID,
		AmountCents: plan.PriceCents(),
		Description: plan.Label(),
		PayerEmail:  "user42@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, orders.StatusAwaitingPayment, o.Status)

	// user taps "I paid" before actually paying
	res, err := c.CheckOrder(ctx, o.ID, 42)
	require.NoError(t, err)
	require.Equal(t, orders.StatusAwaitingPayment, res.Status)
	require.Equal(t, int64(0), gr.grants.Load())

	// the payment clears and the gateway notifies us
	gw.set(gateway.StatusApproved)
	require.NoError(t, c.HandleGatewayEvent(ctx, intent.GatewayPaymentID))
	require.Equal(t, int64(1), gr.grants.Load())

	final, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, orders.StatusApproved, final.Status)
	require.True(t, final.Granted)

	// duplicate webhook and a late poll change nothing
	require.NoError(t, c.HandleGatewayEvent(ctx, intent.GatewayPaymentID))
	res, err = c.CheckOrder(ctx, o.ID, 42)
	require.NoError(t, err)
	require.Equal(t, orders.StatusApproved, res.Status)
	require.True(t, res.Granted)
	require.Equal(t, int64(1), gr.grants.Load())

	require.Equal(t, 1, ev.approved)
	require.Equal(t, 1, ev.granted)
	require.Equal(t, 0, ev.failed)
}
