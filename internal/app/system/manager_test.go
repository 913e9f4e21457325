package system

import (
	"context"
	"errors"
	"testing"
)

// recordingService appends lifecycle events to a shared log.
type recordingService struct {
	name     string
	events   *[]string
	startErr error
	stopErr  error
}

func (s *recordingService) Name() string { return s.name }

func (s *recordingService) Start(_ context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	*s.events = append(*s.events, "start "+s.name)
	return nil
}

func (s *recordingService) Stop(_ context.Context) error {
	*s.events = append(*s.events, "stop "+s.name)
	return s.stopErr
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	m := NewManager()
	if err := m.Register(NoopService{ServiceName: "janitor"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(NoopService{ServiceName: "janitor"}); err == nil {
		t.Fatal("duplicate name accepted")
	}
}

func TestStartStopOrder(t *testing.T) {
	var events []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(&recordingService{name: name, events: &events}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	ctx := context.Background()
	if err := m.StartAll(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.StopAll(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}
	if len(events) != len(want) {
		t.Fatalf("events = %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
}

func TestStartFailureRollsBack(t *testing.T) {
	var events []string
	m := NewManager()
	boom := errors.New("boom")

	_ = m.Register(&recordingService{name: "a", events: &events})
	_ = m.Register(&recordingService{name: "b", events: &events, startErr: boom})

	err := m.StartAll(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected start error, got %v", err)
	}

	want := []string{"start a", "stop a"}
	if len(events) != len(want) || events[0] != want[0] || events[1] != want[1] {
		t.Fatalf("events = %v, want %v", events, want)
	}
}

func TestStopAllReturnsFirstError(t *testing.T) {
	var events []string
	m := NewManager()
	boom := errors.New("boom")

	_ = m.Register(&recordingService{name: "a", events: &events, stopErr: boom})
	_ = m.Register(&recordingService{name: "b", events: &events})

	ctx := context.Background()
	if err := m.StartAll(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	err := m.StopAll(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("expected stop error, got %v", err)
	}
	// Both services were still asked to stop.
	if len(events) != 4 {
		t.Fatalf("events = %v", events)
	}
}
