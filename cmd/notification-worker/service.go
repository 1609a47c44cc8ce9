package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/projectmarket-backend/pkg/config"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
)

const heartbeatInterval = 30 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type runner interface {
	Run(ctx context.Context) error
}

type dependency struct {
	name   string
	pinger pinger
}

type ServiceParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       pinger
	Redis    pinger
	PubSub   pinger
	Consumer runner
}

// Service runs the notification consumer once its dependencies answer.
type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	dependencies []dependency
	consumer     runner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("notification consumer is required")
	}
	return &Service{
		cfg:  params.Config,
		logg: params.Logger,
		dependencies: []dependency{
			{name: "database", pinger: params.DB},
			{name: "redis", pinger: params.Redis},
			{name: "pubsub", pinger: params.PubSub},
		},
		consumer: params.Consumer,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range s.dependencies {
		if err := dep.pinger.Ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", dep.name), err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.consumer.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "notification consumer stopped unexpectedly", err)
				return err
			}
			return err
		case <-ticker.C:
			s.logg.Info(ctx, "worker heartbeat")
		}
	}
}
