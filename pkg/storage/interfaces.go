package storage

import (
	"context"

	"github.com/ignacioelizeche/controlid/pkg/model"
)

// Interface is implemented by the storage
type Interface interface {
	Devices() DeviceStore
	Sessions() SessionStore
	Notifications() NotificationStore
	Checkpoints() CheckpointStore
	AccessLogs() AccessLogStore
}

// DeviceStore is responsible for managing the Device model. It is the device
// registry: the relay components only ever read from it.
type DeviceStore interface {
	Get(ctx context.Context, id string) (*model.Device, error)
	List(ctx context.Context) ([]model.Device, error)
	Create(ctx context.Context, m *model.Device) error
	Delete(ctx context.Context, id string) error
	SetSyncEnabled(ctx context.Context, id string, enabled bool) error
}

// SessionStore caches at most one session per device
type SessionStore interface {
	Get(ctx context.Context, deviceID string) (*model.Session, error)
	Put(ctx context.Context, m *model.Session) error
	Delete(ctx context.Context, deviceID string) error
	// DeleteToken removes the device session only while it still holds token.
	DeleteToken(ctx context.Context, deviceID, token string) error
	FetchAll(ctx context.Context) ([]model.Session, error)
}

// NotificationStore is an append-only log of device notifications
type NotificationStore interface {
	Create(ctx context.Context, m *model.Notification) error
	FetchRecent(ctx context.Context, limit int) ([]model.Notification, error)
}

// CheckpointStore keeps the sync position of every device. Advance never
// moves a checkpoint backwards.
type CheckpointStore interface {
	Get(ctx context.Context, deviceID string) (*model.SyncCheckpoint, error)
	Advance(ctx context.Context, m *model.SyncCheckpoint) error
}

// AccessLogStore archives access logs fetched from devices. Save skips logs
// already stored for the same device and returns the number inserted.
type AccessLogStore interface {
	Save(ctx context.Context, deviceID string, logs []model.AccessLog) (int, error)
	FetchByDevice(ctx context.Context, deviceID string, afterID int64, limit int) ([]model.AccessLog, error)
}
