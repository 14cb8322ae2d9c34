// Command seed loads the demonstration dataset into the configured store.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gartstein/harvest/internal/marketplace/config"
	"github.com/gartstein/harvest/internal/marketplace/controller"
	"github.com/gartstein/harvest/internal/marketplace/db"
	"github.com/gartstein/harvest/internal/marketplace/events"
	"github.com/gartstein/harvest/internal/marketplace/index"
	"github.com/gartstein/harvest/internal/marketplace/seed"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	password := flag.String("password", seed.DefaultPassword, "credential of every seeded account")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := db.NewRepository(ctx, cfg.Database())
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer repo.Close()

	var producer controller.EventProducer = events.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		p := events.NewProducer(cfg.KafkaBrokers, cfg.Topic, logger)
		defer p.Close()
		producer = p
	}

	// Running services refresh their own indexes from the published events.
	idx := index.NewManager(logger)
	indexer := controller.NewIndexer(idx, index.NewReconciler(repo, idx, cfg.Reconciler(), logger), logger)

	res, err := seed.Run(ctx, seed.Services{
		Store:        repo,
		Accounts:     controller.NewAccountService(repo, producer, logger),
		Profiles:     controller.NewProfileService(repo, indexer, producer, logger),
		Composer:     controller.NewComposer(repo, indexer, producer, logger),
		Jobs:         controller.NewJobService(repo, indexer, producer, logger),
		Applications: controller.NewApplicationService(repo, producer, logger),
		Messages:     controller.NewMessageService(repo, producer, logger),
	}, *password, logger)
	if errors.Is(err, seed.ErrAlreadySeeded) {
		logger.Info("Store already seeded, nothing to do")
		return
	}
	if err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}
	logger.Info("Seeded", zap.String("admin_id", res.Admin.AccountID.String()), zap.String("admin_email", seed.AdminEmail))
}
