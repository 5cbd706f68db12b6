package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rafaelcoelhox/go-vip-access/internal/gateway"
	"github.com/rafaelcoelhox/go-vip-access/internal/plans"
	"github.com/rafaelcoelhox/go-vip-access/internal/telegram"
)

func plansMenuText(brand string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\nPick a plan to generate your PIX payment:\n\n", brand)
	for _, p := range plans.All() {
		fmt.Fprintf(&sb, "• %s\n", p.Label())
	}
	sb.WriteString("\nAfter paying, tap \"I paid\" and your access arrives automatically.")
	return sb.String()
}

func plansKeyboard() *telegram.InlineKeyboardMarkup {
	var rows [][]telegram.InlineKeyboardButton
	for _, p := range plans.All() {
		rows = append(rows, []telegram.InlineKeyboardButton{
			{Text: p.Label(), CallbackData: "plan:" + p.ID},
		})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func payKeyboard(orderID string) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "✅ I paid", CallbackData: "paid:" + orderID}},
		{{Text: "⬅️ Back to plans", CallbackData: "back:plans"}},
	}}
}

func checkoutText(p plans.Plan, pixCopyPaste string) string {
	return fmt.Sprintf(
		"PIX generated!\n\nPlan: %s\nAmount: R$ %s\n\nPIX copy-and-paste code:\n%s\n\nAfter paying, tap \"I paid\".",
		p.Name, p.Price.StringFixed(2), pixCopyPaste)
}

func checkoutErrorText(err error) string {
	if errors.Is(err, gateway.ErrUnavailable) {
		return "The payment provider is unavailable right now. Try again in a few seconds."
	}
	// Rejected or malformed creation attempts are terminal; the user starts a
	// fresh order rather than retrying this one.
	return "I couldn't generate the PIX for this attempt. Pick a plan to try again with a new order."
}
