package memory

import (
	"context"
	"testing"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/ignacioelizeche/controlid/pkg/storage"
)

func TestSessionStore_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(2)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		created := base.Add(time.Duration(i) * time.Minute)
		s.Put(ctx, &model.Session{DeviceID: id, Token: id, CreatedAt: created, ExpiresAt: created.Add(time.Hour)})
	}

	if _, err := s.Get(ctx, "a"); err != storage.ErrNotFound {
		t.Errorf("Get(a) error = %v, want ErrNotFound", err)
	}
	all, _ := s.FetchAll(ctx)
	if len(all) != 2 || all[0].DeviceID != "b" || all[1].DeviceID != "c" {
		t.Errorf("FetchAll() = %+v", all)
	}

	// Replacing an existing entry never evicts
	s.Put(ctx, &model.Session{DeviceID: "b", Token: "b2", CreatedAt: base, ExpiresAt: base.Add(time.Hour)})
	if got, _ := s.Get(ctx, "c"); got == nil {
		t.Error("replacing b evicted c")
	}
}

func TestNotificationStore_MonotonicIDs(t *testing.T) {
	ctx := context.Background()
	s := NewStore(1).Notifications()

	payload := []byte(`{"door":1}`)
	n1 := &model.Notification{Category: "door-state", Payload: payload}
	n2 := &model.Notification{Category: "liveness-ping"}
	s.Create(ctx, n1)
	s.Create(ctx, n2)
	payload[2] = 'X'

	if n1.ID != 1 || n2.ID != 2 {
		t.Fatalf("ids = %d, %d", n1.ID, n2.ID)
	}

	got, _ := s.FetchRecent(ctx, 10)
	if len(got) != 2 || got[0].ID != 2 {
		t.Fatalf("FetchRecent() = %+v", got)
	}
	if string(got[1].Payload) != `{"door":1}` {
		t.Errorf("stored payload aliased caller buffer: %s", got[1].Payload)
	}
}

func TestCheckpointStore_Monotonic(t *testing.T) {
	ctx := context.Background()
	s := NewStore(1).Checkpoints()

	s.Advance(ctx, &model.SyncCheckpoint{DeviceID: "lobby", LastLogID: 9})
	s.Advance(ctx, &model.SyncCheckpoint{DeviceID: "lobby", LastLogID: 4})

	got, err := s.Get(ctx, "lobby")
	if err != nil || got.LastLogID != 9 {
		t.Errorf("Get() = %+v, %v, want 9", got, err)
	}
}

func TestAccessLogStore_SkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewStore(1).AccessLogs()

	n, _ := s.Save(ctx, "lobby", []model.AccessLog{{ID: 3}, {ID: 1}, {ID: 2}})
	if n != 3 {
		t.Fatalf("Save() = %d, want 3", n)
	}
	n, _ = s.Save(ctx, "lobby", []model.AccessLog{{ID: 2}, {ID: 4}})
	if n != 1 {
		t.Fatalf("Save() with duplicate = %d, want 1", n)
	}

	got, _ := s.FetchByDevice(ctx, "lobby", 1, 2)
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		t.Errorf("FetchByDevice() = %+v", got)
	}
}

func TestDeviceStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore(1).Devices()

	if err := s.Create(ctx, &model.Device{ID: "lobby", Address: "10.0.0.5"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Create(ctx, &model.Device{ID: "lobby"}); err != storage.ErrAlreadyExists {
		t.Errorf("Create() duplicate error = %v", err)
	}
	got, err := s.Get(ctx, "lobby")
	if err != nil || got.BaseURL() != "http://10.0.0.5" {
		t.Errorf("Get() = %+v, %v", got, err)
	}
	if err := s.Delete(ctx, "missing"); err != storage.ErrNotFound {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestDeviceStore_SyncFlag(t *testing.T) {
	ctx := context.Background()
	s := NewStore(1).Devices()

	s.Create(ctx, &model.Device{ID: "lobby", Address: "10.0.0.5"})
	if err := s.SetSyncEnabled(ctx, "lobby", false); err != nil {
		t.Fatalf("SetSyncEnabled() error = %v", err)
	}
	if got, _ := s.Get(ctx, "lobby"); got.SyncEnabled() {
		t.Error("sync still enabled after stop")
	}
	if err := s.SetSyncEnabled(ctx, "missing", false); err != storage.ErrNotFound {
		t.Errorf("SetSyncEnabled() missing error = %v, want ErrNotFound", err)
	}
}

func TestSessionStore_DeleteToken(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(2)
	now := time.Now()

	s.Put(ctx, &model.Session{DeviceID: "lobby", Token: "renewed", CreatedAt: now, ExpiresAt: now.Add(time.Minute)})
	s.DeleteToken(ctx, "lobby", "stale")
	if got, _ := s.Get(ctx, "lobby"); got == nil || got.Token != "renewed" {
		t.Fatalf("stale token removed renewed session: %+v", got)
	}

	s.DeleteToken(ctx, "lobby", "renewed")
	if _, err := s.Get(ctx, "lobby"); err != storage.ErrNotFound {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}
