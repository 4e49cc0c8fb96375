package memory

import "github.com/ignacioelizeche/controlid/pkg/storage"

// Store contains all memory-based sub-stores for managing the persistent models
type store struct {
	devices       *deviceStore
	sessions      *sessionStore
	notifications *notificationStore
	checkpoints   *checkpointStore
	accessLogs    *accessLogStore
}

// NewStore creates a new memory-based Storage interface. sessionCapacity
// bounds the number of cached device sessions.
func NewStore(sessionCapacity int) storage.Interface {
	return &store{
		devices:       newDeviceStore(),
		sessions:      NewSessionStore(sessionCapacity),
		notifications: newNotificationStore(),
		checkpoints:   newCheckpointStore(),
		accessLogs:    newAccessLogStore(),
	}
}

// Devices returns a sub-store for managing the device model
func (s *store) Devices() storage.DeviceStore {
	return s.devices
}

// Sessions returns a sub-store for caching device sessions
func (s *store) Sessions() storage.SessionStore {
	return s.sessions
}

// Notifications returns a sub-store for device notifications
func (s *store) Notifications() storage.NotificationStore {
	return s.notifications
}

// Checkpoints returns a sub-store for sync checkpoints
func (s *store) Checkpoints() storage.CheckpointStore {
	return s.checkpoints
}

// AccessLogs returns a sub-store for archived access logs
func (s *store) AccessLogs() storage.AccessLogStore {
	return s.accessLogs
}
