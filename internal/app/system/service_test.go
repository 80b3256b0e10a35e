package system

import (
	"context"
	"errors"
	"testing"
)

type stubService struct {
	name     string
	startErr error
	started  bool
	stopped  bool
	order    *[]string
}

func (s *stubService) Name() string { return s.name }

func (s *stubService) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *stubService) Stop(context.Context) error {
	s.stopped = true
	if s.order != nil {
		*s.order = append(*s.order, s.name)
	}
	return nil
}

func TestManagerStartStopOrder(t *testing.T) {
	var stopOrder []string
	a := &stubService{name: "a", order: &stopOrder}
	b := &stubService{name: "b", order: &stopOrder}

	m := NewManager()
	if err := m.Register(a); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := m.Register(b); err != nil {
		t.Fatalf("register b: %v", err)
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !a.started || !b.started {
		t.Fatalf("not all services started")
	}

	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(stopOrder) != 2 || stopOrder[0] != "b" || stopOrder[1] != "a" {
		t.Fatalf("stop order should be reversed, got %v", stopOrder)
	}
}

func TestManagerRejectsDuplicateNames(t *testing.T) {
	m := NewManager()
	if err := m.Register(&stubService{name: "a"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(&stubService{name: "a"}); err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}
}

func TestManagerRollsBackOnStartFailure(t *testing.T) {
	ok := &stubService{name: "ok"}
	bad := &stubService{name: "bad", startErr: errors.New("boom")}

	m := NewManager()
	_ = m.Register(ok)
	_ = m.Register(bad)

	if err := m.Start(context.Background()); err == nil {
		t.Fatalf("expected start to fail")
	}
	if !ok.stopped {
		t.Fatalf("previously started services must be stopped on failure")
	}
}
