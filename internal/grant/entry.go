package grant

import (
	"context"
	"fmt"

	"github.com/rafaelcoelhox/go-vip-access/internal/orders"
	"github.com/rafaelcoelhox/go-vip-access/internal/pending"
)

// EntryApprover authorizes a queued entry request against the protected chat.
type EntryApprover interface {
	ApproveChatJoinRequest(ctx context.Context, chatID, userID int64) error
}

// EntryApprovalGranter approves the user's outstanding entry request; when
// none exists yet it records a pre-authorization so a future request is
// approved without another payment check.
type EntryApprovalGranter struct {
	Approver  EntryApprover
	Messenger Messenger
	Pending   pending.Tracker
	ChatID    int64
}

var _ Granter = (*EntryApprovalGranter)(nil)

func (g *EntryApprovalGranter) Grant(ctx context.Context, o *orders.Order) error {
	isPending, err := g.Pending.IsPending(ctx, o.UserID)
	if err != nil {
		return fmt.Errorf("%w: read pending entry: %v", ErrDeliveryFailed, err)
	}

	if !isPending {
		if err := g.Pending.PreAuthorize(ctx, o.UserID, o.ID); err != nil {
			return fmt.Errorf("%w: record pre-authorization: %v", ErrDeliveryFailed, err)
		}
		text := "Payment confirmed!\n\nRequest to join the VIP channel and you will be let in automatically."
		if err := g.Messenger.SendMessage(ctx, o.UserID, text, nil); err != nil {
			return fmt.Errorf("%w: notify payer: %v", ErrDeliveryFailed, err)
		}
		return nil
	}

	if err := g.Approver.ApproveChatJoinRequest(ctx, g.ChatID, o.UserID); err != nil {
		return fmt.Errorf("%w: approve entry: %v", ErrDeliveryFailed, err)
	}
	if err := g.Pending.Clear(ctx, o.UserID); err != nil {
		return fmt.Errorf("%w: clear pending entry: %v", ErrDeliveryFailed, err)
	}
	text := "Payment confirmed! Your request to join the VIP channel was approved."
	if err := g.Messenger.SendMessage(ctx, o.UserID, text, nil); err != nil {
		return fmt.Errorf("%w: notify payer: %v", ErrDeliveryFailed, err)
	}
	return nil
}
