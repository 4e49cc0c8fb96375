package model

import "time"

// Notification is an unsolicited event pushed by a device
type Notification struct {
	ID         int64
	Category   string
	DeviceID   string
	Payload    []byte
	ReceivedAt time.Time
}
