package main

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muhammadchandra19/exchange/pkg/httplib/healthcheck"
	"github.com/muhammadchandra19/exchange/pkg/logger"
	"github.com/muhammadchandra19/exchange/pkg/redis"
	app "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/app/feed"
	eventpublisher "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/event-publisher"
	messagereader "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/message-reader"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/metrics"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/orderbook"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/snapshot"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/usecase/synchronizer"
	"github.com/muhammadchandra19/exchange/services/orderbook-sync/pkg/config"
)

var cfg *config.Config
var log *logger.Logger

func init() {
	var err error
	cfg = &config.Config{}
	err = config.Load(cfg)
	if err != nil {
		panic(err)
	}
	if err = cfg.Validate(); err != nil {
		panic(err)
	}

	logger, err := logger.NewLogger(logger.WithLoggingLevel(logger.ParseLevel(cfg.LogLevel)))
	if err != nil {
		panic(err)
	}

	log = logger
}

func main() {
	defer func() { _ = log.Sync() }()

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize Redis client
	rclient := redis.NewClient(log, &cfg.RedisConfig)
	if err := rclient.Connect(ctx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "connect_redis",
		})
		return
	}

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	feedOptions := app.DefaultFeedOptions()
	feedOptions.SnapshotInterval = cfg.SnapshotInterval
	feedOptions.EventBufferSize = cfg.EventBufferSize

	// Initialize one feed per product
	registry := app.NewRegistry()
	for _, productID := range cfg.Products {
		syncer := synchronizer.NewSynchronizer(orderbook.NewBook(), log, synchronizer.Options{
			ProductID: productID,
			Strict:    cfg.StrictSequence,
		})
		feed := app.NewFeedWithOptions(
			syncer,
			messagereader.NewReader(cfg.KafkaConfig, productID, log),
			snapshot.NewSnapshotStore(rclient, productID, cfg.RedisConfig.CheckpointTTL, log),
			eventpublisher.NewPublisher(cfg.KafkaConfig, log),
			m,
			log,
			feedOptions,
		)
		if err := registry.Register(feed); err != nil {
			log.Error(err, logger.Field{
				Key:   "action",
				Value: "register_feed",
			})
			return
		}
	}

	// Start the feeds
	if err := registry.StartAll(ctx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "start_feeds",
		})
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           healthcheck.New(registry.Ready).Handler(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			log.Error(err, logger.Field{
				Key:   "action",
				Value: "serve_http",
			})
		}
	}()

	log.Info("Orderbook sync service started successfully", logger.Field{
		Key:   "products",
		Value: registry.Products(),
	}, logger.Field{
		Key:   "http_addr",
		Value: cfg.HTTPAddr,
	})

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info("Received shutdown signal", logger.Field{
		Key:   "signal",
		Value: sig.String(),
	})

	// Cancel the main context to signal shutdown
	cancel()

	// Create a timeout context for graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "stop_http",
		})
	}

	// Stop the feeds gracefully
	if err := registry.StopAll(shutdownCtx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "stop_feeds",
		})
	}

	if err := rclient.Disconnect(shutdownCtx); err != nil {
		log.Error(err, logger.Field{
			Key:   "action",
			Value: "disconnect_redis",
		})
	}

	log.Info("Orderbook sync service shutdown complete")
}
