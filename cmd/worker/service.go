package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/clausewise-backend/api"
	"github.com/angelmondragon/clausewise-backend/pkg/config"
	"github.com/angelmondragon/clausewise-backend/pkg/logger"
	"github.com/angelmondragon/clausewise-backend/pkg/queue"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type scheduler interface {
	Run(ctx context.Context) error
}

// Dependency is a backing service probed before the worker starts.
type Dependency struct {
	Name   string
	Pinger pinger
}

type ServiceParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	Dependencies []Dependency
	Consumer     queue.Consumer
	Handler      queue.Handler
	Cron         scheduler
	// Admin serves /health/live and /metrics; nil disables it.
	Admin http.Handler
}

type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	dependencies []Dependency
	consumer     queue.Consumer
	handler      queue.Handler
	cron         scheduler
	admin        http.Handler
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Consumer == nil {
		return nil, errors.New("queue consumer is required")
	}
	if params.Handler == nil {
		return nil, errors.New("job handler is required")
	}
	if params.Cron == nil {
		return nil, errors.New("cron service is required")
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		dependencies: params.Dependencies,
		consumer:     params.Consumer,
		handler:      params.Handler,
		cron:         params.Cron,
		admin:        params.Admin,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for _, dep := range s.dependencies {
		if dep.Pinger == nil {
			continue
		}
		if err := pingDependency(ctx, s.logg, dep.Name, dep.Pinger.Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run consumes analysis jobs and drives the cron loop until ctx is done or
// either of them fails. Errors surfacing after ctx is done count as shutdown.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.consumer.Run(gctx, s.cfg.Queue.Concurrency, s.handler)
	})
	g.Go(func() error {
		return s.cron.Run(gctx)
	})
	if s.admin != nil {
		g.Go(func() error {
			return api.Serve(gctx, api.NewServer(":"+s.cfg.App.Port, s.admin), s.logg)
		})
	}

	err := g.Wait()
	if err != nil && ctx.Err() == nil {
		s.logg.Error(ctx, "worker stopped unexpectedly", err)
		return err
	}
	s.logg.Info(ctx, "worker context done")
	return nil
}
