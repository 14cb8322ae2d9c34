package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gartstein/harvest/internal/marketplace/config"
	"github.com/gartstein/harvest/internal/marketplace/controller"
	"github.com/gartstein/harvest/internal/marketplace/db"
	"github.com/gartstein/harvest/internal/marketplace/events"
	"github.com/gartstein/harvest/internal/marketplace/handlers"
	"github.com/gartstein/harvest/internal/marketplace/index"
	"go.uber.org/zap"
)

const topicPartitions = 3

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger := initLogger(cfg)
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := db.NewRepository(ctx, cfg.Database())
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close database", zap.Error(err))
		}
	}()

	idx := index.NewManager(logger)
	reconciler := index.NewReconciler(repo, idx, cfg.Reconciler(), logger)
	indexer := controller.NewIndexer(idx, reconciler, logger)

	var producer controller.EventProducer = events.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		if err := events.EnsureTopic(cfg.KafkaBrokers, cfg.Topic, topicPartitions, logger); err != nil {
			logger.Warn("Kafka unavailable, events disabled", zap.Error(err))
		} else {
			p := events.NewProducer(cfg.KafkaBrokers, cfg.Topic, logger)
			defer p.Close()
			producer = p

			consumer := events.NewConsumer(cfg.KafkaBrokers, cfg.Topic, cfg.GroupID, logger)
			consumer.RegisterHandler(indexer.HandleEvent)
			consumer.Start(ctx)
			defer consumer.Close()
		}
	} else {
		logger.Info("No Kafka brokers configured, events disabled")
	}

	composer := controller.NewComposer(repo, indexer, producer, logger)
	services := handlers.Services{
		Accounts:      controller.NewAccountService(repo, producer, logger),
		Profiles:      controller.NewProfileService(repo, indexer, producer, logger),
		Organizations: controller.NewOrganizationService(repo, composer, indexer, producer, logger),
		Jobs:          controller.NewJobService(repo, indexer, producer, logger),
		Applications:  controller.NewApplicationService(repo, producer, logger),
		Messages:      controller.NewMessageService(repo, producer, logger),
		Search:        controller.NewSearchService(repo, idx, indexer, logger),
		Analytics:     controller.NewAnalyticsService(repo, logger),
		Admin:         controller.NewAdminService(repo, indexer, producer, logger),
	}

	mux, err := handlers.NewAPI(services, cfg.JWTSecret, cfg.TokenTTL, logger).Mux()
	if err != nil {
		logger.Fatal("Failed to register HTTP routes", zap.Error(err))
	}
	server := handlers.NewServer(cfg.GRPCPort, cfg.HTTPPort, logger)
	server.RegisterHTTPHandler(mux, cfg.JWTSecret)

	go reconciler.Run(ctx)
	go markServingWhenReady(ctx, idx, server, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
	}

	server.Stop()
	logger.Info("Servers stopped properly")
}

// initLogger initializes a Zap production logger, or a development one when
// the config says so.
func initLogger(cfg *config.Config) *zap.Logger {
	if cfg.Development() {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}

// markServingWhenReady flips the health status once the first index sweep
// has completed.
func markServingWhenReady(ctx context.Context, idx *index.Manager, server *handlers.Server, logger *zap.Logger) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if idx.Ready() {
				server.SetServing(true)
				logger.Info("Search index ready, serving")
				return
			}
		}
	}
}
