package monolith

import (
	"context"
	"errors"
	"testing"

	"github.com/fd1az/flashblocks-catcher/internal/config"
	"github.com/fd1az/flashblocks-catcher/internal/di"
)

type recordingModule struct {
	name     string
	events   *[]string
	startErr error
}

func (m *recordingModule) RegisterServices(c di.Container) error {
	*m.events = append(*m.events, "register:"+m.name)
	return nil
}

func (m *recordingModule) Startup(ctx context.Context, mono Monolith) error {
	*m.events = append(*m.events, "start:"+m.name)
	if mono.Config() == nil {
		return errors.New("missing config")
	}
	return m.startErr
}

func (m *recordingModule) Shutdown(ctx context.Context, mono Monolith) error {
	*m.events = append(*m.events, "stop:"+m.name)
	return nil
}

func TestApp_ModuleLifecycle(t *testing.T) {
	var events []string
	chain := &recordingModule{name: "chain", events: &events}
	game := &recordingModule{name: "game", events: &events}

	a := New(&config.Config{}, nil, nil)

	if err := a.RegisterModules(chain, game); err != nil {
		t.Fatal(err)
	}
	if err := a.StartModules(context.Background(), chain, game); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := []string{"register:chain", "register:game", "start:chain", "start:game", "stop:game", "stop:chain"}
	if len(events) != len(want) {
		t.Fatalf("events = %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %s, want %s", i, events[i], want[i])
		}
	}

	if a.Services().Get("config") == nil {
		t.Error("config not registered in container")
	}
}

func TestApp_StartFailureOnlyClosesStarted(t *testing.T) {
	var events []string
	chain := &recordingModule{name: "chain", events: &events}
	game := &recordingModule{name: "game", events: &events, startErr: errors.New("boom")}

	a := New(&config.Config{}, nil, nil)
	if err := a.StartModules(context.Background(), chain, game); err == nil {
		t.Fatal("expected start error")
	}
	_ = a.Close(context.Background())

	last := events[len(events)-1]
	if last != "stop:chain" {
		t.Errorf("last event = %s, want stop:chain", last)
	}
	for _, e := range events {
		if e == "stop:game" {
			t.Error("module that failed to start was shut down")
		}
	}
}
