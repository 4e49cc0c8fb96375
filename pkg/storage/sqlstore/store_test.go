package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/ignacioelizeche/controlid/pkg/storage"
	"github.com/jmoiron/sqlx"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	n, err := Migrate(db)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if n == 0 {
		t.Fatal("Migrate() applied no migrations")
	}

	return db
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url        string
		wantDriver string
		wantDSN    string
		wantErr    bool
	}{
		{url: "sqlite3://controlid.db", wantDriver: "sqlite3", wantDSN: "controlid.db"},
		{url: "sqlite3:///var/lib/controlid.db", wantDriver: "sqlite3", wantDSN: "/var/lib/controlid.db"},
		{url: ":memory:", wantDriver: "sqlite3", wantDSN: ":memory:"},
		{url: "postgres://user:pw@localhost/relay?sslmode=disable", wantDriver: "postgres", wantDSN: "postgres://user:pw@localhost/relay?sslmode=disable"},
		{url: "mysql://localhost/relay", wantErr: true},
		{url: "sqlite3://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			driver, dsn, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if driver != tt.wantDriver || dsn != tt.wantDSN {
				t.Errorf("ParseURL() = (%q, %q), want (%q, %q)", driver, dsn, tt.wantDriver, tt.wantDSN)
			}
		})
	}
}

func TestDeviceStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore(openTestDB(t)).Devices()

	dev := &model.Device{
		ID:       "lobby",
		Name:     "Lobby turnstile",
		Address:  "10.0.0.5",
		Login:    "admin",
		Password: "secret",
		Defaults: map[string]interface{}{"timeout": float64(5)},
	}
	if err := s.Create(ctx, dev); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Create(ctx, &model.Device{ID: "lobby", Address: "x"}); err != storage.ErrAlreadyExists {
		t.Errorf("Create() duplicate error = %v, want ErrAlreadyExists", err)
	}

	got, err := s.Get(ctx, "lobby")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Protocol != "http" {
		t.Errorf("Protocol = %q, want http", got.Protocol)
	}
	if got.Defaults["timeout"] != float64(5) {
		t.Errorf("Defaults = %v", got.Defaults)
	}

	if err := s.Create(ctx, &model.Device{ID: "garage", Address: "10.0.0.6", Protocol: "https"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != "garage" || list[1].ID != "lobby" {
		t.Errorf("List() = %+v", list)
	}

	if err := s.Delete(ctx, "lobby"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "lobby"); err != storage.ErrNotFound {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "lobby"); err != storage.ErrNotFound {
		t.Errorf("Delete() missing error = %v, want ErrNotFound", err)
	}
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore(openTestDB(t)).Sessions()

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.Put(ctx, &model.Session{DeviceID: "lobby", Token: "a", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Put(ctx, &model.Session{DeviceID: "lobby", Token: "b", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("Put() replace error = %v", err)
	}

	got, err := s.Get(ctx, "lobby")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Token != "b" {
		t.Errorf("Token = %q, want b", got.Token)
	}
	if !got.ExpiresAt.Equal(now.Add(time.Minute)) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, now.Add(time.Minute))
	}

	all, err := s.FetchAll(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("FetchAll() = %v, %v", all, err)
	}

	if err := s.Delete(ctx, "lobby"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "lobby"); err != storage.ErrNotFound {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestDeviceStore_SyncFlag(t *testing.T) {
	ctx := context.Background()
	s := NewStore(openTestDB(t)).Devices()

	if err := s.Create(ctx, &model.Device{ID: "lobby", Address: "10.0.0.5"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got, _ := s.Get(ctx, "lobby"); !got.SyncEnabled() {
		t.Fatal("new device has sync disabled")
	}

	if err := s.SetSyncEnabled(ctx, "lobby", false); err != nil {
		t.Fatalf("SetSyncEnabled(false) error = %v", err)
	}
	list, _ := s.List(ctx)
	if len(list) != 1 || list[0].SyncEnabled() {
		t.Errorf("List() after stop = %+v", list)
	}

	if err := s.SetSyncEnabled(ctx, "lobby", true); err != nil {
		t.Fatalf("SetSyncEnabled(true) error = %v", err)
	}
	if got, _ := s.Get(ctx, "lobby"); !got.SyncEnabled() {
		t.Error("sync still disabled after start")
	}

	if err := s.SetSyncEnabled(ctx, "missing", true); err != storage.ErrNotFound {
		t.Errorf("SetSyncEnabled() missing error = %v, want ErrNotFound", err)
	}
}

func TestSessionStore_DeleteToken(t *testing.T) {
	ctx := context.Background()
	s := NewStore(openTestDB(t)).Sessions()

	now := time.Now().UTC().Truncate(time.Second)
	s.Put(ctx, &model.Session{DeviceID: "lobby", Token: "renewed", CreatedAt: now, ExpiresAt: now.Add(time.Minute)})

	if err := s.DeleteToken(ctx, "lobby", "stale"); err != nil {
		t.Fatalf("DeleteToken() error = %v", err)
	}
	if got, err := s.Get(ctx, "lobby"); err != nil || got.Token != "renewed" {
		t.Fatalf("Get() after stale delete = %+v, %v", got, err)
	}

	if err := s.DeleteToken(ctx, "lobby", "renewed"); err != nil {
		t.Fatalf("DeleteToken() error = %v", err)
	}
	if _, err := s.Get(ctx, "lobby"); err != storage.ErrNotFound {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestNotificationStore_FetchRecentOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStore(openTestDB(t)).Notifications()

	for _, c := range []string{"door-state", "liveness-ping", "log-change"} {
		n := &model.Notification{Category: c, DeviceID: "lobby", Payload: []byte(`{"x":1}`)}
		if err := s.Create(ctx, n); err != nil {
			t.Fatalf("Create(%s) error = %v", c, err)
		}
		if n.ID == 0 {
			t.Errorf("Create(%s) did not assign an id", c)
		}
	}

	got, err := s.FetchRecent(ctx, 2)
	if err != nil {
		t.Fatalf("FetchRecent() error = %v", err)
	}
	if len(got) != 2 || got[0].Category != "log-change" || got[1].Category != "liveness-ping" {
		t.Errorf("FetchRecent(2) = %+v", got)
	}
	if string(got[0].Payload) != `{"x":1}` {
		t.Errorf("Payload = %s", got[0].Payload)
	}

	all, _ := s.FetchRecent(ctx, 0)
	if len(all) != 3 {
		t.Errorf("FetchRecent(0) returned %d, want 3", len(all))
	}
}

func TestCheckpointStore_Monotonic(t *testing.T) {
	ctx := context.Background()
	s := NewStore(openTestDB(t)).Checkpoints()

	if _, err := s.Get(ctx, "lobby"); err != storage.ErrNotFound {
		t.Fatalf("Get() on empty store error = %v, want ErrNotFound", err)
	}

	for _, id := range []int64{10, 25, 12} {
		if err := s.Advance(ctx, &model.SyncCheckpoint{DeviceID: "lobby", LastLogID: id, LastLogTime: id * 100}); err != nil {
			t.Fatalf("Advance(%d) error = %v", id, err)
		}
	}

	got, err := s.Get(ctx, "lobby")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.LastLogID != 25 || got.LastLogTime != 2500 {
		t.Errorf("checkpoint = %+v, want id 25", got)
	}
}

func TestAccessLogStore_SkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewStore(openTestDB(t)).AccessLogs()

	logs := []model.AccessLog{{ID: 1, Time: 100, UserID: 7}, {ID: 2, Time: 200, QRCodeValue: "abc"}}
	n, err := s.Save(ctx, "lobby", logs)
	if err != nil || n != 2 {
		t.Fatalf("Save() = %d, %v, want 2", n, err)
	}

	n, err = s.Save(ctx, "lobby", append(logs, model.AccessLog{ID: 3, Time: 300}))
	if err != nil || n != 1 {
		t.Fatalf("Save() with duplicates = %d, %v, want 1", n, err)
	}

	// Same ids from another device are distinct records
	if n, _ := s.Save(ctx, "garage", logs); n != 2 {
		t.Errorf("Save() other device = %d, want 2", n)
	}

	got, err := s.FetchByDevice(ctx, "lobby", 1, 0)
	if err != nil {
		t.Fatalf("FetchByDevice() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		t.Errorf("FetchByDevice() = %+v", got)
	}
	if got[0].QRCodeValue != "abc" || got[0].Source != "lobby" {
		t.Errorf("record = %+v", got[0])
	}
}
