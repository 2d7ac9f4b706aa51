// The provisioning agent: drains pending room requests from the shared
// queue, creates a private room per deal, and records the result for
// the interactive agent.
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
	"github.com/p2pmart/dealroom/internal/health"
	"github.com/p2pmart/dealroom/internal/logging"
	"github.com/p2pmart/dealroom/internal/ops"
	"github.com/p2pmart/dealroom/internal/provision"
	"github.com/p2pmart/dealroom/internal/queue"
	"github.com/p2pmart/dealroom/internal/registry"
	"github.com/p2pmart/dealroom/internal/traces"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	logger.Info("starting provisioner",
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

	shutdownTraces, err := traces.Init(ctx, "dealroom-provisioner", cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTraces(context.Background()) }()

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

	client := chat.NewClient(cfg.ChatAPIURL, cfg.BotToken)
	creator := provision.NewChatCreator(client).WithTemplate(cfg.EscrowGroup)

	p := provision.New(requests, rooms, creator, cfg.QueuePollInterval, logger)
	go p.Start(ctx)
	defer p.Stop()

	opsSrv := ops.New(cfg.OpsPort, cfg.Env, rooms, requests, nil, checks, logger)
	logger.Info("provisioner ready", "ops_port", cfg.OpsPort)
	if err := opsSrv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("ops server error", "error", err)
		os.Exit(1)
	}
	logger.Info("provisioner stopped")
}
