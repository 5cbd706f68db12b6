// Package grant issues the access artifact once an order is finalized as
// paid: either a single-use invite link delivered to the user, or approval of
// a queued entry request.
package grant

import (
	"context"
	"errors"

	"github.com/rafaelcoelhox/go-vip-access/internal/orders"
)

// ErrDeliveryFailed: the payment is confirmed but the artifact could not be
// issued. Callers must not roll back the order; the grant is re-driven later.
var ErrDeliveryFailed = errors.New("access grant delivery failed")

type Granter interface {
	Grant(ctx context.Context, o *orders.Order) error
}
