package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rafaelcoelhox/go-vip-access/internal/gateway"
	"github.com/rafaelcoelhox/go-vip-access/internal/orders"
)

type fakeGateway struct {
	mu     sync.Mutex
	status gateway.NormalizedStatus
	err    error
	calls  int
}

func (f *fakeGateway) GetPaymentStatus(_ context.Context, _ string) (gateway.NormalizedStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return gateway.StatusUnknown, f.err
	}
	return f.status, nil
}

func (f *fakeGateway) set(s gateway.NormalizedStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = s
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGranter struct {
	grants atomic.Int64
	err    error
}

func (f *fakeGranter) Grant(_ context.Context, _ *orders.Order) error {
	if f.err != nil {
		return f.err
	}
	f.grants.Add(1)
	return nil
}

type recordingEvents struct {
	mu       sync.Mutex
	approved int
	closed   int
	granted  int
	failed   int
}

func (r *recordingEvents) PaymentApproved(*orders.Order) {
	r.mu.Lock()
	r.approved++
	r.mu.Unlock()
}
func (r *recordingEvents) PaymentClosed(*orders.Order, gateway.NormalizedStatus) {
	r.mu.Lock()
	r.closed++
	r.mu.Unlock()
}
func (r *recordingEvents) AccessGranted(*orders.Order) {
	r.mu.Lock()
	r.granted++
	r.mu.Unlock()
}
func (r *recordingEvents) GrantFailed(*orders.Order, string) {
	r.mu.Lock()
	r.failed++
	r.mu.Unlock()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedAwaiting puts an order in awaiting_payment with a gateway payment id,
// the state both triggers race out of.
func seedAwaiting(t *testing.T, store orders.Store, orderID, paymentID string, userID int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &orders.Order{
		ID: orderID, UserID: userID, PlanID: "vip7", AmountCents: 990, Status: orders.StatusCreated,
	}))
	require.NoError(t, store.AttachGatewayPayment(ctx, orderID, paymentID))
}

func newCoordinator(store orders.Store, gw *fakeGateway, gr *fakeGranter, ev EventPublisher) *Coordinator {
	if ev == nil {
		ev = NopEvents{}
	}
	return &Coordinator{Store: store, Gateway: gw, Granter: gr, Events: ev, Log: testLogger()}
}

func TestCheckOrder_PendingLeavesOrderUnchanged(t *testing.T) {
	ctx := context.Background()
	store := orders.NewMemoryStore()
	seedAwaiting(t, store, "o1", "P1", 42)
	c := newCoordinator(store, &fakeGateway{status: gateway.StatusPending}, &fakeGranter{}, nil)

	res, err := c.CheckOrder(ctx, "o1", 42)
	require.NoError(t, err)
	require.Equal(t, orders.StatusAwaitingPayment, res.Status)
	require.False(t, res.Transitioned)

	o, err := store.Get(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, orders.StatusAwaitingPayment, o.Status)
	require.False(t, o.Granted)
}

func TestCheckOrder_Ownership(t *testing.T) {
	store := orders.NewMemoryStore()
	seedAwaiting(t, store, "o1", "P1", 42)
	c := newCoordinator(store, &fakeGateway{status: gateway.StatusApproved}, &fakeGranter{}, nil)

	_, err := c.CheckOrder(context.Background(), "o1", 7)
	require.ErrorIs(t, err, ErrNotOwner)
}

func TestCheckOrder_NotReadyWithoutIntent(t *testing.T) {
	ctx := context.Background()
	store := orders.NewMemoryStore()
	require.NoError(t, store.Create(ctx, &orders.Order{
		ID: "o1", UserID: 42, PlanID: "vip7", AmountCents: 990, Status: orders.StatusCreated,
	}))
	c := newCoordinator(store, &fakeGateway{status: gateway.StatusApproved}, &fakeGranter{}, nil)

	_, err := c.CheckOrder(ctx, "o1", 42)
	require.ErrorIs(t, err, ErrOrderNotReady)
}

func TestCheckOrder_GatewayUnavailableLeavesOrderUnchanged(t *testing.T) {
	ctx := context.Background()
	store := orders.NewMemoryStore()
	seedAwaiting(t, store, "o1", "P1", 42)
	c := newCoordinator(store, &fakeGateway{err: gateway.ErrUnavailable}, &fakeGranter{}, nil)

	_, err := c.CheckOrder(ctx, "o1", 42)
	require.ErrorIs(t, err, gateway.ErrUnavailable)

	o, err := store.Get(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, orders.StatusAwaitingPayment, o.Status)
}

// barrierGateway holds every status query until all expected callers have
// arrived, so concurrent triggers observe the order as awaiting_payment
// before either attempts the compare-and-set.
type barrierGateway struct {
	barrier sync.WaitGroup
}

func (b *barrierGateway) GetPaymentStatus(context.Context, string) (gateway.NormalizedStatus, error) {
	b.barrier.Done()
	b.barrier.Wait()
	return gateway.StatusApproved, nil
}

func TestConcurrentPollAndWebhook_GrantExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := orders.NewMemoryStore()
	seedAwaiting(t, store, "o1", "P1", 42)

	gr := &fakeGranter{}
	ev := &recordingEvents{}
	gw := &barrierGateway{}
	gw.barrier.Add(2)
	c := &Coordinator{Store: store, Gateway: gw, Granter: gr, Events: ev, Log: testLogger()}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = c.CheckOrder(ctx, "o1", 42)
	}()
	go func() {
		defer wg.Done()
		_ = c.HandleGatewayEvent(ctx, "P1")
	}()
	wg.Wait()

	require.Equal(t, int64(1), gr.grants.Load(), "grant must run exactly once")

	o, err := store.Get(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, orders.StatusApproved, o.Status)
	require.True(t, o.Granted)
	require.Equal(t, 1, ev.approved)
	require.Equal(t, 1, ev.granted)
}

func TestWebhook_UnknownPaymentIsDiscarded(t *testing.T) {
	store := orders.NewMemoryStore()
	gr := &fakeGranter{}
	gw := &fakeGateway{status: gateway.StatusApproved}
	c := newCoordinator(store, gw, gr, nil)

	require.NoError(t, c.HandleGatewayEvent(context.Background(), "ghost"))
	require.Equal(t, int64(0), gr.grants.Load())
	require.Equal(t, 0, gw.callCount(), "no gateway query for unknown payments")
}

func TestDuplicateWebhook_NoSecondGrant(t *testing.T) {
	ctx := context.Background()
	store := orders.NewMemoryStore()
	seedAwaiting(t, store, "o1", "P1", 42)
	gr := &fakeGranter{}
	c := newCoordinator(store, &fakeGateway{status: gateway.StatusApproved}, gr, nil)

	require.NoError(t, c.HandleGatewayEvent(ctx, "P1"))
	require.NoError(t, c.HandleGatewayEvent(ctx, "P1"))
	require.Equal(t, int64(1), gr.grants.Load())
}

func TestRejectedStatusClosesOrder(t *testing.T) {
	ctx := context.Background()
	store := orders.NewMemoryStore()
	seedAwaiting(t, store, "o1", "P1", 42)
	gw := &fakeGateway{status: gateway.StatusRejected}
	ev := &recordingEvents{}
	c := newCoordinator(store, gw, &fakeGranter{}, ev)

	res, err := c.CheckOrder(ctx, "o1", 42)
	require.NoError(t, err)
	require.Equal(t, orders.StatusRejected, res.Status)
	require.True(t, res.Transitioned)
	require.Equal(t, 1, ev.closed)

	// a later poll reports the terminal state without another gateway query
	queries := gw.callCount()
	res, err = c.CheckOrder(ctx, "o1", 42)
	require.NoError(t, err)
	require.Equal(t, orders.StatusRejected, res.Status)
	require.False(t, res.Transitioned)
	require.Equal(t, queries, gw.callCount())
}

func TestUnknownGatewayStatusClosesOrderAsRejected(t *testing.T) {
	ctx := context.Background()
	store := orders.NewMemoryStore()
	seedAwaiting(t, store, "o1", "P1", 42)
	c := newCoordinator(store, &fakeGateway{status: gateway.StatusUnknown}, &fakeGranter{}, nil)

	res, err := c.CheckOrder(ctx, "o1", 42)
	require.NoError(t, err)
	require.Equal(t, orders.StatusRejected, res.Status)
}

func TestExpiredStatusKeepsExpired(t *testing.T) {
	ctx := context.Background()
	store := orders.NewMemoryStore()
	seedAwaiting(t, store, "o1", "P1", 42)
	c := newCoordinator(store, &fakeGateway{status: gateway.StatusExpired}, &fakeGranter{}, nil)

	res, err := c.CheckOrder(ctx, "o1", 42)
	require.NoError(t, err)
	require.Equal(t, orders.StatusExpired, res.Status)
}

func TestGrantFailureDoesNotRollBackAndIsRedrivable(t *testing.T) {
	ctx := context.Background()
	store := orders.NewMemoryStore()
	seedAwaiting(t, store, "o1", "P1", 42)

	boom := errors.New("authority unreachable")
	gr := &fakeGranter{err: boom}
	ev := &recordingEvents{}
	c := newCoordinator(store, &fakeGateway{status: gateway.StatusApproved}, gr, ev)

	res, err := c.CheckOrder(ctx, "o1", 42)
	require.NoError(t, err)
	require.Equal(t, orders.StatusApproved, res.Status)
	require.ErrorIs(t, res.GrantErr, boom)
	require.False(t, res.Granted)
	require.Equal(t, 1, ev.failed)

	// confirmed payment stays confirmed
	o, err := store.Get(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, orders.StatusApproved, o.Status)
	require.False(t, o.Granted)

	// the authority comes back; a re-drive completes the grant
	gr.err = nil
	n, err := c.RedriveUngranted(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, int64(1), gr.grants.Load())

	o, err = store.Get(ctx, "o1")
	require.NoError(t, err)
	require.True(t, o.Granted)
}

func TestReobservedApprovedUngrantedTriggersGrant(t *testing.T) {
	ctx := context.Background()
	store := orders.NewMemoryStore()
	seedAwaiting(t, store, "o1", "P1", 42)

	// simulate a crash after the transition and before the grant
	won, err := store.CompareAndSetStatus(ctx, "o1", orders.StatusAwaitingPayment, orders.StatusApproved)
	require.NoError(t, err)
	require.True(t, won)

	gr := &fakeGranter{}
	gw := &fakeGateway{status: gateway.StatusApproved}
	c := newCoordinator(store, gw, gr, nil)

	res, err := c.CheckOrder(ctx, "o1", 42)
	require.NoError(t, err)
	require.Equal(t, orders.StatusApproved, res.Status)
	require.True(t, res.Granted)
	require.Equal(t, int64(1), gr.grants.Load())
	require.Equal(t, 0, gw.callCount(), "terminal orders are not re-queried")
}

func TestRedriveOrder_SkipsFinishedOrders(t *testing.T) {
	ctx := context.Background()
	store := orders.NewMemoryStore()
	seedAwaiting(t, store, "o1", "P1", 42)
	gr := &fakeGranter{}
	c := newCoordinator(store, &fakeGateway{status: gateway.StatusApproved}, gr, nil)

	// still awaiting: nothing to redrive
	require.NoError(t, c.RedriveOrder(ctx, "o1"))
	require.Equal(t, int64(0), gr.grants.Load())

	_, err := c.CheckOrder(ctx, "o1", 42)
	require.NoError(t, err)
	require.Equal(t, int64(1), gr.grants.Load())

	// granted already: redrive is a no-op
	require.NoError(t, c.RedriveOrder(ctx, "o1"))
	require.Equal(t, int64(1), gr.grants.Load())
}
