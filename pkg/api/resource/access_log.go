package resource

import (
	"time"

	"github.com/ignacioelizeche/controlid/pkg/model"
)

type AccessLogListResource struct {
	Members []model.AccessLog `json:"members"`
}

func NewAccessLogList(m []model.AccessLog) *AccessLogListResource {
	if m == nil {
		m = make([]model.AccessLog, 0)
	}
	return &AccessLogListResource{Members: m}
}

type CheckpointResource struct {
	DeviceID    string     `json:"deviceId"`
	LastLogID   int64      `json:"lastLogId"`
	LastLogTime int64      `json:"lastLogTime"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

func NewCheckpoint(m *model.SyncCheckpoint) (out *CheckpointResource) {
	out = &CheckpointResource{
		DeviceID:    m.DeviceID,
		LastLogID:   m.LastLogID,
		LastLogTime: m.LastLogTime,
	}
	if !m.UpdatedAt.IsZero() {
		t := m.UpdatedAt
		out.UpdatedAt = &t
	}
	return // out
}
