// Package pending tracks users who requested entry to the protected chat
// before their payment was confirmed, plus users whose payment confirmed
// before they asked to enter. Pure bookkeeping; no payment knowledge.
package pending

import "context"

type Tracker interface {
	// RecordRequest notes that the user asked to enter and awaits authorization.
	RecordRequest(ctx context.Context, userID int64) error
	IsPending(ctx context.Context, userID int64) (bool, error)
	Clear(ctx context.Context, userID int64) error

	// PreAuthorize marks a paid user with no outstanding entry request so a
	// future request can be approved without another payment check.
	PreAuthorize(ctx context.Context, userID int64, orderID string) error
	IsPreAuthorized(ctx context.Context, userID int64) (bool, error)
	ClearPreAuthorization(ctx context.Context, userID int64) error
}
