package model

import "time"

// SyncCheckpoint is the last access log forwarded for a device
type SyncCheckpoint struct {
	DeviceID    string
	LastLogID   int64
	LastLogTime int64
	UpdatedAt   time.Time
}

// Covers reports whether the checkpoint already includes the given log.
func (c *SyncCheckpoint) Covers(logID int64) bool {
	return c != nil && logID <= c.LastLogID
}
