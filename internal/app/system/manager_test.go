package system

import (
	"context"
	"errors"
	"testing"
)

type recordingService struct {
	name    string
	started bool
	stopped bool
	failOn  bool
}

func (s *recordingService) Name() string { return s.name }

func (s *recordingService) Start(_ context.Context) error {
	if s.failOn {
		return errors.New("boom")
	}
	s.started = true
	return nil
}

func (s *recordingService) Stop(_ context.Context) error {
	s.stopped = true
	return nil
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	first := &recordingService{name: "first"}
	second := &recordingService{name: "second"}

	if err := m.Register(first); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(second); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(&recordingService{name: "first"}); err == nil {
		t.Fatal("duplicate name should be rejected")
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !first.started || !second.started {
		t.Fatal("all services should be started")
	}
	if err := m.Register(&recordingService{name: "late"}); err == nil {
		t.Fatal("registration after start should be rejected")
	}

	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !first.stopped || !second.stopped {
		t.Fatal("all services should be stopped")
	}
}

func TestManagerStartFailureUnwinds(t *testing.T) {
	m := NewManager()
	ok := &recordingService{name: "ok"}
	bad := &recordingService{name: "bad", failOn: true}

	if err := m.Register(ok); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(bad); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected start failure")
	}
	if !ok.stopped {
		t.Fatal("already-started service should be stopped on failure")
	}
}
