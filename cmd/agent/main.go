// The interactive escrow agent: consumes chat updates, walks deal
// rooms through the escrow flow, and requests new rooms from the
// provisioning agent via the shared queue.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/p2pmart/dealroom/internal/chat"
	"github.com/p2pmart/dealroom/internal/config"
	"github.com/p2pmart/dealroom/internal/deal"
	"github.com/p2pmart/dealroom/internal/health"
	"github.com/p2pmart/dealroom/internal/logging"
	"github.com/p2pmart/dealroom/internal/ops"
	"github.com/p2pmart/dealroom/internal/queue"
	"github.com/p2pmart/dealroom/internal/realtime"
	"github.com/p2pmart/dealroom/internal/registry"
	"github.com/p2pmart/dealroom/internal/session"
	"github.com/p2pmart/dealroom/internal/traces"
	"github.com/p2pmart/dealroom/internal/verifier"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	logger.Info("starting deal agent",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = logging.New(cfg.LogLevel, "json")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTraces, err := traces.Init(ctx, "dealroom-agent", cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTraces(context.Background()) }()

	// Durable state
	requests := queue.NewFileStore(cfg.QueueFile)
	var rooms registry.Store = registry.NewFileStore(cfg.RegistryFile)

	checks := health.NewRegistry()
	checks.Register("queue-file", ops.FileCheck("queue-file", cfg.QueueFile))
	checks.Register("registry-file", ops.FileCheck("registry-file", cfg.RegistryFile))

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()

		rooms = registry.NewTeeStore(rooms, registry.NewPostgresStore(db), logger)
		checks.Register("database", ops.DBCheck("database", db))
		logger.Info("registry database cache enabled")
	}

	// Chat transport
	client := chat.NewClient(cfg.ChatAPIURL, cfg.BotToken)

	// Deposit verification
	v := verifier.New(verifier.NewBreakerLookup(verifier.NewScanClient(cfg.ScanAPIURL, cfg.ScanAPIKey)))
	if cfg.BypassTxHash != "" {
		v = v.WithBypassHash(cfg.BypassTxHash)
		logger.Warn("deposit bypass hash enabled")
	}

	hub := realtime.NewHub(logger)
	go hub.Run(ctx)

	svc := deal.NewService(
		session.NewMemoryStore(), rooms, requests, client, v,
		deal.NewAddressBook(), logger,
	).
		WithHub(hub).
		WithRateFloor(cfg.RateFloor).
		WithResultPoll(cfg.ResultPollInterval, cfg.ResultPollAttempts).
		WithAdmins(cfg.AdminUsernames).
		WithAnnounceChat(cfg.AnnounceChatID)

	poller := deal.NewRoomPoller(svc, cfg.RoomPollInterval, logger)
	if err := poller.MarkExisting(ctx); err != nil {
		logger.Error("failed to mark pre-existing rooms", "error", err)
		os.Exit(1)
	}
	go poller.Start(ctx)
	defer poller.Stop()

	opsSrv := ops.New(cfg.OpsPort, cfg.Env, rooms, requests, hub, checks, logger)
	go func() {
		if err := opsSrv.Run(ctx); err != nil {
			logger.Error("ops server error", "error", err)
		}
	}()

	logger.Info("deal agent ready", "ops_port", cfg.OpsPort)
	if err := svc.Run(ctx, client); err != nil && ctx.Err() == nil {
		logger.Error("update loop error", "error", err)
		os.Exit(1)
	}
	logger.Info("deal agent stopped")
}
