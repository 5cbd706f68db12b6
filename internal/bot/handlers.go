package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rafaelcoelhox/go-vip-access/internal/gateway"
	"github.com/rafaelcoelhox/go-vip-access/internal/orders"
	"github.com/rafaelcoelhox/go-vip-access/internal/plans"
	"github.com/rafaelcoelhox/go-vip-access/internal/reconcile"
	"github.com/rafaelcoelhox/go-vip-access/internal/telegram"
)

func (b *Bot) handleMessage(ctx context.Context, m *telegram.Message) {
	if m.From == nil {
		return
	}
	parts := strings.SplitN(strings.TrimSpace(m.Text), " ", 2)
	switch parts[0] {
	case "/start":
		b.send(ctx, m.Chat.ID, plansMenuText(b.Brand), plansKeyboard())
	case "/email":
		arg := ""
		if len(parts) == 2 {
			arg = parts[1]
		}
		b.setEmail(ctx, m.From.ID, m.Chat.ID, arg)
	default:
		b.send(ctx, m.Chat.ID, "Use /start to see the available plans.", nil)
	}
}

// setEmail stores the payer email used on payment creation. Optional: users
// who never set one check out with a synthetic address.
func (b *Bot) setEmail(ctx context.Context, userID, chatID int64, email string) {
	if b.Emails == nil {
		b.send(ctx, chatID, "Use /start to see the available plans.", nil)
		return
	}
	if email == "" {
		b.send(ctx, chatID, "Use it like this: /email your@email.com", nil)
		return
	}
	ok, err := b.Emails.SetEmail(ctx, userID, email)
	if err != nil {
		b.Log.Error("store email failed", slog.Int64("user_id", userID), slog.String("error", err.Error()))
		b.send(ctx, chatID, "I couldn't save that right now. Try again in a moment.", nil)
		return
	}
	if !ok {
		b.send(ctx, chatID, "That doesn't look like an email. Use it like this: /email your@email.com", nil)
		return
	}
	b.send(ctx, chatID, "Email saved! Use /start to pick a plan.", nil)
}

func (b *Bot) handleCallback(ctx context.Context, q *telegram.CallbackQuery) {
	if err := b.TG.AnswerCallbackQuery(ctx, q.ID); err != nil {
		b.Log.Warn("answerCallbackQuery failed", slog.String("error", err.Error()))
	}
	if q.Message == nil {
		return
	}
	chatID, msgID := q.Message.Chat.ID, q.Message.MessageID

	action, arg := splitCallback(q.Data)
	switch action {
	case "plan":
		b.startCheckout(ctx, q.From.ID, chatID, msgID, arg)
	case "paid":
		b.checkPayment(ctx, q.From.ID, chatID, msgID, arg)
	case "back":
		b.edit(ctx, chatID, msgID, plansMenuText(b.Brand), plansKeyboard())
	}
}

func (b *Bot) startCheckout(ctx context.Context, userID, chatID, msgID int64, planID string) {
	plan, ok := plans.Get(planID)
	if !ok {
		b.edit(ctx, chatID, msgID, "Unknown plan. Use /start to pick one.", nil)
		return
	}

	o, intent, err := b.Coord.OpenOrder(ctx, reconcile.OpenRequest{
		UserID:      userID,
		PlanID:      plan.ID,
		AmountCents: plan.PriceCents(),
		Description: fmt.Sprintf("%s - %s", b.Brand, plan.Name),
		PayerEmail:  b.payerEmail(ctx, userID),
	})
	if err != nil {
		b.Log.Error("open order failed",
			slog.Int64("user_id", userID),
			slog.String("plan_id", planID),
			slog.String("error", err.Error()))
		b.edit(ctx, chatID, msgID, checkoutErrorText(err), plansKeyboard())
		return
	}

	b.edit(ctx, chatID, msgID, checkoutText(plan, intent.PixCopyPaste), payKeyboard(o.ID))
}

func (b *Bot) checkPayment(ctx context.Context, userID, chatID, msgID int64, orderID string) {
	res, err := b.Coord.CheckOrder(ctx, orderID, userID)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrNotFound):
			b.edit(ctx, chatID, msgID, "I couldn't find this payment. Use /start to open a new one.", nil)
		case errors.Is(err, reconcile.ErrNotOwner):
			b.edit(ctx, chatID, msgID, "This payment does not belong to you.", nil)
		case errors.Is(err, reconcile.ErrOrderNotReady):
			b.edit(ctx, chatID, msgID, "This order has no payment attached. Use /start to open a new one.", plansKeyboard())
		case errors.Is(err, gateway.ErrUnavailable):
			b.edit(ctx, chatID, msgID, "I couldn't verify right now. Try again in a few seconds.", payKeyboard(orderID))
		default:
			b.Log.Error("check payment failed", slog.String("order_id", orderID), slog.String("error", err.Error()))
			b.edit(ctx, chatID, msgID, "Something went wrong while checking. Try again in a moment.", payKeyboard(orderID))
		}
		return
	}

	switch res.Status {
	case orders.StatusAwaitingPayment:
		b.edit(ctx, chatID, msgID,
			"Not confirmed yet.\n\nIf you just paid it may take a moment. Tap \"I paid\" again shortly.",
			payKeyboard(orderID))
	case orders.StatusApproved:
		if res.GrantErr != nil {
			b.edit(ctx, chatID, msgID,
				"Payment confirmed, but I couldn't deliver your access yet. It will be retried automatically.", nil)
			return
		}
		// The granter already delivered the access artifact.
		b.edit(ctx, chatID, msgID, "Payment confirmed! Check the access message I just sent you.", nil)
	default:
		b.edit(ctx, chatID, msgID,
			fmt.Sprintf("This payment is closed (%s). Use /start to open a new one.", res.Status),
			plansKeyboard())
	}
}

// handleJoinRequest authorizes paid users immediately and queues everyone
// else as a pending entry for a later-arriving confirmation.
func (b *Bot) handleJoinRequest(ctx context.Context, jr *telegram.ChatJoinRequest) {
	if jr.Chat.ID != b.VIPChatID {
		return
	}
	userID := jr.From.ID

	ok, err := b.Pending.IsPreAuthorized(ctx, userID)
	if err != nil {
		b.Log.Error("preauth lookup failed", slog.Int64("user_id", userID), slog.String("error", err.Error()))
		return
	}
	if ok {
		if err := b.TG.ApproveChatJoinRequest(ctx, b.VIPChatID, userID); err != nil {
			b.Log.Error("approve join request failed", slog.Int64("user_id", userID), slog.String("error", err.Error()))
			return
		}
		_ = b.Pending.ClearPreAuthorization(ctx, userID)
		return
	}

	if err := b.Pending.RecordRequest(ctx, userID); err != nil {
		b.Log.Error("record entry request failed", slog.Int64("user_id", userID), slog.String("error", err.Error()))
		return
	}
	b.send(ctx, userID, "I received your request to join. Complete a payment with /start and you will be let in.", nil)
}

// payerEmail prefers the user's stored address and falls back to a synthetic
// one; the gateway requires some payer email but we never require it of users.
func (b *Bot) payerEmail(ctx context.Context, userID int64) string {
	if b.Emails != nil {
		email, err := b.Emails.GetEmail(ctx, userID)
		if err != nil {
			b.Log.Warn("email lookup failed", slog.Int64("user_id", userID), slog.String("error", err.Error()))
		} else if email != "" {
			return email
		}
	}
	return fmt.Sprintf("user%d@example.com", userID)
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) {
	if err := b.TG.SendMessage(ctx, chatID, text, markup); err != nil {
		b.Log.Error("sendMessage failed", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
}

func (b *Bot) edit(ctx context.Context, chatID, msgID int64, text string, markup *telegram.InlineKeyboardMarkup) {
	if err := b.TG.EditMessageText(ctx, chatID, msgID, text, markup); err != nil {
		b.Log.Error("editMessageText failed", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
}

func splitCallback(data string) (action, arg string) {
	parts := strings.SplitN(data, ":", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}
