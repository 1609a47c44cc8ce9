package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/projectmarket-backend/internal/listings"
	"github.com/angelmondragon/projectmarket-backend/internal/notifications"
	"github.com/angelmondragon/projectmarket-backend/internal/offers"
	"github.com/angelmondragon/projectmarket-backend/internal/users"
	"github.com/angelmondragon/projectmarket-backend/pkg/config"
	"github.com/angelmondragon/projectmarket-backend/pkg/db"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
	"github.com/angelmondragon/projectmarket-backend/pkg/metrics"
	"github.com/angelmondragon/projectmarket-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/projectmarket-backend/pkg/outbox/registry"
	"github.com/angelmondragon/projectmarket-backend/pkg/pubsub"
	"github.com/angelmondragon/projectmarket-backend/pkg/redis"
	"github.com/angelmondragon/projectmarket-backend/pkg/sendgrid"
)

const serviceName = "notification-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	mailer, err := sendgrid.NewClient(context.Background(), cfg.Sendgrid, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap sendgrid", err)
		os.Exit(1)
	}

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(context.Background(), "failed to build event registry", err)
		os.Exit(1)
	}

	guard, err := idempotency.NewGuard(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	subscription := pubsubClient.NotificationSubscription()
	if subscription == nil {
		logg.Error(context.Background(), "notification subscription not configured", errors.New("missing subscription"))
		os.Exit(1)
	}

	consumer, err := notifications.NewConsumer(notifications.ConsumerParams{
		Subscription: subscription,
		Registry:     eventRegistry,
		Idempotency:  guard,
		Offers:       offers.NewRepository(dbClient.DB()),
		Projects:     listings.NewRepository(dbClient.DB()),
		Profiles:     users.NewRepository(dbClient.DB()),
		Sender:       mailer,
		Logger:       logg,
		Metrics:      metrics.NewMarketplace(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		PubSub:   pubsubClient,
		Consumer: consumer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"serviceKind":  serviceName,
		"subscription": cfg.PubSub.NotificationSubscription,
	})
	logg.Info(ctx, "starting notification worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "notification worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "notification worker shutting down gracefully")
}
