// The redrive worker completes grants for payments that were confirmed but
// whose access artifact was never delivered. It reacts to grant-failed events
// and additionally sweeps the store on a timer to catch crashes that happened
// between the status transition and the grant.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/rafaelcoelhox/go-vip-access/internal/config"
	"github.com/rafaelcoelhox/go-vip-access/internal/grant"
	"github.com/rafaelcoelhox/go-vip-access/internal/kafkax"
	"github.com/rafaelcoelhox/go-vip-access/internal/orders"
	"github.com/rafaelcoelhox/go-vip-access/internal/pending"
	"github.com/rafaelcoelhox/go-vip-access/internal/postgres"
	"github.com/rafaelcoelhox/go-vip-access/internal/reconcile"
	"github.com/rafaelcoelhox/go-vip-access/internal/redisx"
	"github.com/rafaelcoelhox/go-vip-access/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("db connect", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	store := &orders.PGStore{DB: db}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	tg, err := telegram.NewClient("", cfg.BotToken, nil)
	if err != nil {
		log.Error("telegram client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tracker := &pending.RedisTracker{RDB: rdb}
	var granter grant.Granter
	if cfg.GrantMode == "entry_approval" {
		granter = &grant.EntryApprovalGranter{Approver: tg, Messenger: tg, Pending: tracker, ChatID: cfg.VIPChatID}
	} else {
		granter = &grant.InviteGranter{Links: tg, Messenger: tg, ChatID: cfg.VIPChatID, InviteTTL: 24 * time.Hour}
	}

	// The redrive path publishes no further grant-failed events; a grant that
	// fails again is picked up by the next sweep instead of looping through
	// the topic.
	coord := &reconcile.Coordinator{
		Store:   store,
		Granter: granter,
		Events:  reconcile.NopEvents{},
		Cache:   rdb,
		Log:     log,
	}

	group := getenv("REDRIVE_GROUP", "grant-redrive")
	workers := mustAtoi(os.Getenv("REDRIVE_WORKERS"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicGrantFailed, workers, log)

	handler := func(ctx context.Context, m kafkago.Message) error {
		var env orders.Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			return err
		}
		if env.EventType != orders.EventGrantFailed {
			return nil
		}

		// Dedup on event id so reprocessed partitions don't re-grant.
		dkey := fmt.Sprintf(redisx.KeyDedup, "redrive", env.EventID)
		if seen, _ := redisx.Exists(ctx, rdb, dkey); seen {
			return nil
		}
		_ = rdb.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

		p, err := kafkax.UnwrapPayload[orders.GrantFailedPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := coord.RedriveOrder(ctx, p.OrderID); err != nil {
			// Commit anyway; the periodic sweep retries later.
			log.Warn("redrive attempt failed", slog.String("order_id", p.OrderID), slog.String("error", err.Error()))
		}
		return nil
	}

	go func() {
		log.Info("redrive consumer started", slog.String("group", group), slog.String("topic", orders.TopicGrantFailed))
		if err := cons.Start(ctx, handler); err != nil {
			log.Error("consumer exit", slog.String("error", err.Error()))
			cancel()
		}
	}()

	sweepEvery := time.Duration(mustAtoi(os.Getenv("REDRIVE_SWEEP_SECONDS"), 300)) * time.Second
	go func() {
		t := time.NewTicker(sweepEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := coord.RedriveUngranted(ctx, 100)
				if err != nil {
					log.Error("sweep failed", slog.String("error", err.Error()))
					continue
				}
				if n > 0 {
					log.Info("sweep completed grants", slog.Int("count", n))
				}
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down redrive worker")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
