package model

import "time"

// Device is a model of the persistency layer
type Device struct {
	ID       string
	Name     string
	Address  string
	Protocol string
	Login    string
	Password string
	Defaults map[string]interface{}
	// SyncDisabled keeps the device out of scheduled log sync.
	SyncDisabled bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SyncEnabled reports whether the sync loop picks up the device.
func (d *Device) SyncEnabled() bool {
	return !d.SyncDisabled
}

// BaseURL returns the root URL of the device control API.
func (d *Device) BaseURL() string {
	protocol := d.Protocol
	if protocol == "" {
		protocol = "http"
	}
	return protocol + "://" + d.Address
}
