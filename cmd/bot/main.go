package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rafaelcoelhox/go-vip-access/internal/bot"
	"github.com/rafaelcoelhox/go-vip-access/internal/config"
	"github.com/rafaelcoelhox/go-vip-access/internal/gateway"
	"github.com/rafaelcoelhox/go-vip-access/internal/grant"
	"github.com/rafaelcoelhox/go-vip-access/internal/httpx"
	"github.com/rafaelcoelhox/go-vip-access/internal/kafkax"
	"github.com/rafaelcoelhox/go-vip-access/internal/orders"
	"github.com/rafaelcoelhox/go-vip-access/internal/pending"
	"github.com/rafaelcoelhox/go-vip-access/internal/postgres"
	"github.com/rafaelcoelhox/go-vip-access/internal/profile"
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

	store, closeStore := buildStore(ctx, cfg.PostgresDSN, log)
	defer closeStore()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Lifecycle event producers
	pApproved := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentApproved, 1024, log)
	pClosed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentClosed, 1024, log)
	pGranted := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicAccessGranted, 1024, log)
	pFailed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicGrantFailed, 1024, log)
	producers := []*kafkax.Producer{pApproved, pClosed, pGranted, pFailed}
	for _, p := range producers {
		p.Start(ctx)
	}

	notificationURL := ""
	if cfg.PublicBaseURL != "" {
		notificationURL = strings.TrimRight(cfg.PublicBaseURL, "/") + "/gateway/webhook"
	}
	gw, err := gateway.NewClient(cfg.GatewayURL, cfg.GatewayToken, notificationURL, nil)
	if err != nil {
		log.Error("gateway client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tg, err := telegram.NewClient("", cfg.BotToken, nil)
	if err != nil {
		log.Error("telegram client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tracker := &pending.RedisTracker{RDB: rdb}
	granter := buildGranter(cfg, tg, tracker)

	coord := &reconcile.Coordinator{
		Store:   store,
		Gateway: gw,
		Intents: gw,
		Granter: granter,
		Events: &reconcile.KafkaEvents{
			Approved: pApproved,
			Closed:   pClosed,
			Granted:  pGranted,
			Failed:   pFailed,
			Service:  cfg.ServiceName,
		},
		Cache: rdb,
		Log:   log,
	}

	// Webhook surface
	router := httpx.NewRouter()
	wh := &httpx.WebhookHandler{Reconciler: coord, Log: log}
	wh.Register(router)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("webhook listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("listen", slog.String("error", err.Error()))
			cancel()
		}
	}()

	// Telegram long-poll loop
	b := &bot.Bot{
		TG:        tg,
		Coord:     coord,
		Pending:   tracker,
		Emails:    &profile.RedisDirectory{RDB: rdb},
		VIPChatID: cfg.VIPChatID,
		Brand:     cfg.BrandName,
		Log:       log,
	}
	go b.Run(ctx)

	// In-process sweep for approved-but-ungranted orders. The redrive worker
	// covers the same ground; this catches memory-store runs it cannot see.
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n, err := coord.RedriveUngranted(ctx, 100); err != nil {
					log.Error("grant sweep failed", slog.String("error", err.Error()))
				} else if n > 0 {
					log.Info("grant sweep completed grants", slog.Int("count", n))
				}
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	for _, p := range producers {
		p.Close()
	}
	cancel()
	for _, p := range producers {
		p.WaitClosed()
	}
}

// buildStore prefers Postgres and falls back to the in-memory store so the
// bot stays usable in local runs without a database. The memory store loses
// the cross-restart guarantees; the log line makes that loud.
func buildStore(ctx context.Context, dsn string, log *slog.Logger) (orders.Store, func()) {
	db, err := postgres.Connect(ctx, dsn)
	if err != nil {
		log.Warn("postgres unavailable, using in-memory order store", slog.String("error", err.Error()))
		return orders.NewMemoryStore(), func() {}
	}
	pg := &orders.PGStore{DB: db}
	if err := pg.EnsureSchema(ctx); err != nil {
		log.Error("ensure schema", slog.String("error", err.Error()))
		db.Close()
		os.Exit(1)
	}
	return pg, db.Close
}

func buildGranter(cfg config.Config, tg *telegram.Client, tracker pending.Tracker) grant.Granter {
	if cfg.GrantMode == "entry_approval" {
		return &grant.EntryApprovalGranter{
			Approver:  tg,
			Messenger: tg,
			Pending:   tracker,
			ChatID:    cfg.VIPChatID,
		}
	}
	return &grant.InviteGranter{
		Links:     tg,
		Messenger: tg,
		ChatID:    cfg.VIPChatID,
		InviteTTL: 24 * time.Hour,
	}
}
