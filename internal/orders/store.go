package orders

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("order not found")

	// ErrGatewayIDTaken: the order already carries a gateway payment id.
	// It is set at most once and never changes thereafter.
	ErrGatewayIDTaken = errors.New("gateway payment id already set")
)

// Store is the durable record of purchase attempts. CompareAndSetStatus and
// MarkGranted are the only mutation primitives used for finalization; both are
// conditional writes so concurrent reconciliations race safely through the
// store instead of through in-process locks.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*Order, error)

	// AttachGatewayPayment records the gateway payment id and moves the order
	// from created to awaiting_payment in a single guarded write.
	AttachGatewayPayment(ctx context.Context, orderID, gatewayPaymentID string) error

	// CompareAndSetStatus applies the transition only if the stored status
	// still equals expected. Returns false (and no side effects) otherwise.
	CompareAndSetStatus(ctx context.Context, orderID string, expected, next Status) (bool, error)

	// MarkGranted flips granted to true only while status is approved and
	// granted is still false.
	MarkGranted(ctx context.Context, orderID string) (bool, error)

	// SetStatus force-sets a status for non-racing transitions out of created
	// (e.g. created -> error when the intent could not be opened).
	SetStatus(ctx context.Context, orderID string, next Status) error

	// ListUngranted returns orders stuck in approved with granted=false,
	// oldest first, for the re-drive sweep.
	ListUngranted(ctx context.Context, limit int) ([]*Order, error)
}
