package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/projectmarket-backend/api/routes"
	"github.com/angelmondragon/projectmarket-backend/internal/ledger"
	"github.com/angelmondragon/projectmarket-backend/internal/listings"
	"github.com/angelmondragon/projectmarket-backend/internal/offers"
	"github.com/angelmondragon/projectmarket-backend/internal/users"
	stripewebhook "github.com/angelmondragon/projectmarket-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/projectmarket-backend/pkg/config"
	"github.com/angelmondragon/projectmarket-backend/pkg/db"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
	"github.com/angelmondragon/projectmarket-backend/pkg/metrics"
	"github.com/angelmondragon/projectmarket-backend/pkg/migrate"
	"github.com/angelmondragon/projectmarket-backend/pkg/outbox"
	"github.com/angelmondragon/projectmarket-backend/pkg/redis"
	"github.com/angelmondragon/projectmarket-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	marketMetrics := metrics.NewMarketplace(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	offerRepo := offers.NewRepository(dbClient.DB())

	offerService, err := offers.NewService(offers.ServiceParams{
		TX:               dbClient,
		Offers:           offerRepo,
		Listings:         listings.NewRepository(dbClient.DB()),
		Profiles:         users.NewRepository(dbClient.DB()),
		Gateway:          stripeClient,
		Outbox:           outboxService,
		Logger:           logg,
		Metrics:          marketMetrics,
		FeeBasisPoints:   cfg.Offers.FeeBasisPoints,
		Currency:         cfg.Offers.Currency,
		GatewayTimeout:   cfg.Offers.GatewayTimeout,
		DefaultPageLimit: cfg.Offers.DefaultPageLimit,
		MaxPageLimit:     cfg.Offers.MaxPageLimit,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create offer service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Ledger:            ledgerService,
		Offers:            offerRepo,
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		Logger:            logg,
		Metrics:           marketMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, offerService, stripeClient, webhookService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
