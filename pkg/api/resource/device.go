package resource

import (
	"fmt"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/model"
)

type DeviceResource struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Address     string                 `json:"address"`
	Protocol    string                 `json:"protocol"`
	Login       string                 `json:"login"`
	Password    string                 `json:"password,omitempty"`
	Defaults    map[string]interface{} `json:"defaults,omitempty"`
	SyncEnabled *bool                  `json:"syncEnabled,omitempty"`
	CreatedAt   *time.Time             `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time             `json:"updatedAt,omitempty"`
}

type DeviceListResource struct {
	Members []*DeviceResource `json:"members"`
}

// NewDevice renders a device. The password is never rendered.
func NewDevice(m *model.Device) (out *DeviceResource) {
	out = &DeviceResource{
		ID:       m.ID,
		Name:     m.Name,
		Address:  m.Address,
		Protocol: m.Protocol,
		Login:    m.Login,
		Defaults: m.Defaults,
	}

	out.SyncEnabled = new(bool)
	*out.SyncEnabled = m.SyncEnabled()

	if !m.CreatedAt.IsZero() {
		out.CreatedAt = &time.Time{}
		*out.CreatedAt = m.CreatedAt.Round(time.Second)
	}
	if !m.UpdatedAt.IsZero() {
		out.UpdatedAt = &time.Time{}
		*out.UpdatedAt = m.UpdatedAt.Round(time.Second)
	}

	return // out
}

func NewDeviceList(m []model.Device) (out *DeviceListResource) {
	out = &DeviceListResource{
		Members: make([]*DeviceResource, 0, len(m)),
	}

	for i := range m {
		out.Members = append(out.Members, NewDevice(&m[i]))
	}

	return // out
}

func ValidateDevice(r *DeviceResource) (m *model.Device, err error) {
	if r.ID == "" {
		return nil, fmt.Errorf("id is required")
	}
	if r.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	switch r.Protocol {
	case "", "http", "https":
	default:
		return nil, fmt.Errorf("protocol must be http or https")
	}

	m = &model.Device{
		ID:       r.ID,
		Name:     r.Name,
		Address:  r.Address,
		Protocol: r.Protocol,
		Login:    r.Login,
		Password: r.Password,
		Defaults: r.Defaults,
	}
	if r.SyncEnabled != nil {
		m.SyncDisabled = !*r.SyncEnabled
	}

	return m, nil
}
