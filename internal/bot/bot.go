// Package bot is the conversational surface: plan menu, PIX checkout message,
// the "I paid" poll trigger and chat join requests. All payment decisions live
// in the reconcile package; this layer only translates updates into calls and
// results into replies.
package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/rafaelcoelhox/go-vip-access/internal/pending"
	"github.com/rafaelcoelhox/go-vip-access/internal/profile"
	"github.com/rafaelcoelhox/go-vip-access/internal/reconcile"
	"github.com/rafaelcoelhox/go-vip-access/internal/telegram"
)

// API is the slice of the Telegram client the bot loop uses.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
	ApproveChatJoinRequest(ctx context.Context, chatID, userID int64) error
}

type Bot struct {
	TG        API
	Coord     *reconcile.Coordinator
	Pending   pending.Tracker
	Emails    profile.Directory
	VIPChatID int64
	Brand     string
	Log       *slog.Logger
}

const pollTimeoutSec = 30

// Run long-polls for updates until the context is cancelled. Each update is
// handled in its own goroutine; coordination happens in the store, so
// concurrent handling of the same order is safe.
func (b *Bot) Run(ctx context.Context) {
	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := b.TG.GetUpdates(ctx, offset, pollTimeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.Log.Error("getUpdates failed", slog.String("error", err.Error()))
			time.Sleep(2 * time.Second)
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			go b.dispatch(ctx, u)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, u telegram.Update) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch {
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.ChatJoinRequest != nil:
		b.handleJoinRequest(ctx, u.ChatJoinRequest)
	}
}
