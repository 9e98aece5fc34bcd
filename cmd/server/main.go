package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/teilehaus/serviceportal/internal/api"
	"github.com/teilehaus/serviceportal/internal/auth"
	"github.com/teilehaus/serviceportal/internal/broadcast"
	"github.com/teilehaus/serviceportal/internal/config"
	"github.com/teilehaus/serviceportal/internal/events"
	"github.com/teilehaus/serviceportal/internal/repository"
	"github.com/teilehaus/serviceportal/internal/repository/memory"
	"github.com/teilehaus/serviceportal/internal/repository/postgres"
	"github.com/teilehaus/serviceportal/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.Environment == "production" {
		zcfg = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	zcfg.Level = level
	return zcfg.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, closeRepos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepos()

	objects, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("attachment storage: %w", err)
	}

	storageArea, hub := broadcast.NewStorage(), broadcast.NewHub(logger)
	var bus broadcast.Bus
	var publisher events.Publisher = events.NopPublisher{}

	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("serviceportal"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()

		natsBus, err := broadcast.NewNATSBus(nc, storageArea, hub, logger)
		if err != nil {
			return err
		}
		defer natsBus.Close()

		bus = natsBus
		publisher = events.NewNATSPublisher(nc)
		logger.Info("Connected to NATS", zap.String("url", nc.ConnectedUrl()))
	}

	deps := api.Dependencies{
		Repos:     repos,
		Objects:   objects,
		Channel:   broadcast.NewChannel(storageArea, hub, bus, logger),
		Publisher: publisher,
		Issuer:    auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
	}
	router := api.NewRouter(cfg, deps, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(router, "serviceportal"),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Environment),
			zap.String("store", cfg.StoreDriver),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// openRepositories returns the configured repositories and a func releasing them
func openRepositories(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.Repositories, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Using in-memory store, records are lost on restart")
		return memory.NewRepositories(), func() {}, nil
	}

	db, err := postgres.NewConnection(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(db, logger); err != nil {
		db.Close()
		return nil, nil, err
	}
	return postgres.NewRepositories(db, logger), func() { db.Close() }, nil
}
