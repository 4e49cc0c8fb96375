package logsync

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/ignacioelizeche/controlid/pkg/storage"
)

func TestLoop_SyncsEveryDevice(t *testing.T) {
	fetcher := &fakeFetcher{logs: accessLogs(1)}
	fwd := &recordingForwarder{}
	s, store, _ := newTestSyncer(fetcher, fwd)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- NewLoop(s, s.registry, time.Hour).Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		lobby, _ := store.Checkpoints().Get(context.Background(), "lobby")
		garage, _ := store.Checkpoints().Get(context.Background(), "garage")
		if lobby != nil && garage != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("devices were not synced on the first tick")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestLoop_SkipsDevicesWithSyncDisabled(t *testing.T) {
	fetcher := &fakeFetcher{logs: accessLogs(1)}
	s, store, _ := newTestSyncer(fetcher, &recordingForwarder{})
	reg := &fakeRegistry{devices: []model.Device{
		{ID: "lobby", SyncDisabled: true},
		{ID: "garage"},
	}}
	s.registry = reg

	var wg sync.WaitGroup
	NewLoop(s, reg, time.Hour).tick(context.Background(), &wg)
	wg.Wait()

	if _, err := store.Checkpoints().Get(context.Background(), "garage"); err != nil {
		t.Errorf("garage was not synced: %v", err)
	}
	if _, err := store.Checkpoints().Get(context.Background(), "lobby"); err != storage.ErrNotFound {
		t.Errorf("lobby checkpoint error = %v, want ErrNotFound", err)
	}
	if n := atomic.LoadInt32(&fetcher.calls); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
}
