package main

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heraerp/hera-api/pkg/logger"
)

type stubRunner struct {
	called atomic.Bool
	err    error
}

func (s *stubRunner) Run(ctx context.Context) error {
	s.called.Store(true)
	return s.err
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestServiceRunStopsOnFailedDependency(t *testing.T) {
	consumer := &stubRunner{}
	svc, err := NewService(ServiceParams{
		Logger: quietLogger(),
		Dependencies: []dependency{
			{name: "database", ping: func(context.Context) error { return nil }},
			{name: "pubsub", ping: func(context.Context) error { return errors.New("unreachable") }},
		},
		Consumers:     map[string]runner{"ledger_audit": consumer},
		ReadyAttempts: 2,
		ReadyInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected readiness failure")
	}
	if consumer.called.Load() {
		t.Fatalf("consumer must not start before dependencies are ready")
	}
}

func TestServiceRetriesReadiness(t *testing.T) {
	var calls atomic.Int32
	consumer := &stubRunner{}
	svc, err := NewService(ServiceParams{
		Logger: quietLogger(),
		Dependencies: []dependency{{name: "pubsub", ping: func(context.Context) error {
			if calls.Add(1) < 3 {
				return errors.New("emulator starting")
			}
			return nil
		}}},
		Consumers:     map[string]runner{"ledger_audit": consumer},
		ReadyAttempts: 3,
		ReadyInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("expected ready on third attempt, got %v", err)
	}
	if !consumer.called.Load() {
		t.Fatal("expected consumer to run")
	}
}

func TestServiceRunTreatsCancelAsCleanExit(t *testing.T) {
	consumer := &stubRunner{err: context.Canceled}
	svc, err := NewService(ServiceParams{Logger: quietLogger(), Consumers: map[string]runner{"ledger_audit": consumer}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("expected clean exit, got %v", err)
	}
	if !consumer.called.Load() {
		t.Fatalf("expected consumer to run")
	}
}

func TestServiceRunSurfacesConsumerError(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger:    quietLogger(),
		Consumers: map[string]runner{"ledger_audit": &stubRunner{err: errors.New("subscription deleted")}},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected consumer error")
	}
}

func TestNewServiceRequiresConsumer(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: quietLogger()}); err == nil {
		t.Fatalf("expected error without consumer")
	}
}
