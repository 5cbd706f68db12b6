package grant

import (
	"context"
	"fmt"
	"time"

	"github.com/rafaelcoelhox/go-vip-access/internal/orders"
	"github.com/rafaelcoelhox/go-vip-access/internal/telegram"
)

// InviteLinker is the issuing authority for invite credentials. Expiry and the
// single-use limit are enforced there, not re-validated here.
type InviteLinker interface {
	CreateChatInviteLink(ctx context.Context, chatID int64, expireAt time.Time) (string, error)
}

// Messenger delivers text to a user chat.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) error
}

// InviteGranter issues a single-use, time-bounded invite link to the VIP chat
// and delivers it to the payer.
type InviteGranter struct {
	Links     InviteLinker
	Messenger Messenger
	ChatID    int64
	InviteTTL time.Duration
}

var _ Granter = (*InviteGranter)(nil)

func (g *InviteGranter) Grant(ctx context.Context, o *orders.Order) error {
	ttl := g.InviteTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	link, err := g.Links.CreateChatInviteLink(ctx, g.ChatID, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("%w: issue invite: %v", ErrDeliveryFailed, err)
	}
	text := fmt.Sprintf("Payment confirmed!\n\nHere is your VIP access link (single use):\n%s", link)
	if err := g.Messenger.SendMessage(ctx, o.UserID, text, nil); err != nil {
		return fmt.Errorf("%w: deliver invite: %v", ErrDeliveryFailed, err)
	}
	return nil
}
