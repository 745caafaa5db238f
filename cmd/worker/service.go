package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/heraerp/hera-api/pkg/logger"
)

const (
	defaultReadyAttempts = 5
	defaultReadyInterval = 2 * time.Second
)

type runner interface {
	Run(ctx context.Context) error
}

type dependency struct {
	name string
	ping func(context.Context) error
}

type ServiceParams struct {
	Logger        *logger.Logger
	Dependencies  []dependency
	Consumers     map[string]runner
	ReadyAttempts int
	ReadyInterval time.Duration
}

// Service waits for its backends and then runs every consumer until one fails
// or ctx is canceled.
type Service struct {
	logg          *logger.Logger
	deps          []dependency
	consumers     map[string]runner
	readyAttempts int
	readyInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	attempts := params.ReadyAttempts
	if attempts <= 0 {
		attempts = defaultReadyAttempts
	}
	interval := params.ReadyInterval
	if interval <= 0 {
		interval = defaultReadyInterval
	}
	return &Service{
		logg:          params.Logger,
		deps:          params.Dependencies,
		consumers:     params.Consumers,
		readyAttempts: attempts,
		readyInterval: interval,
	}, nil
}

// waitReady pings all dependencies in parallel, retrying the whole round a
// fixed number of times. Emulators and sidecars often come up after the worker.
func (s *Service) waitReady(ctx context.Context) error {
	var last error
	for attempt := 1; attempt <= s.readyAttempts; attempt++ {
		if last = s.pingAll(ctx); last == nil {
			s.logg.Info(ctx, "worker.dependencies.ready")
			return nil
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"attempt": attempt,
			"error":   last.Error(),
		}), "worker.dependencies.not_ready")
		if attempt == s.readyAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.readyInterval):
		}
	}
	return fmt.Errorf("dependencies not ready after %d attempts: %w", s.readyAttempts, last)
}

func (s *Service) pingAll(ctx context.Context) error {
	errs := make([]error, len(s.deps))
	var group errgroup.Group
	for i, dep := range s.deps {
		group.Go(func() error {
			if err := dep.ping(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", dep.name, err)
			}
			return nil
		})
	}
	_ = group.Wait()
	return multierr.Combine(errs...)
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.waitReady(ctx); err != nil {
		s.logg.Error(ctx, "worker.start_failed", err)
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for name, consumer := range s.consumers {
		group.Go(func() error {
			consumerCtx := s.logg.WithField(groupCtx, "consumer", name)
			err := consumer.Run(consumerCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(consumerCtx, "worker.consumer.failed", err)
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	s.logg.Info(ctx, "worker.stopped")
	return nil
}
