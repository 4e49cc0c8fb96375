package resource

import (
	"time"

	"github.com/ignacioelizeche/controlid/pkg/notification"
)

type RealtimeEventResource struct {
	ID         int64       `json:"id"`
	Category   string      `json:"category"`
	DeviceID   string      `json:"deviceId,omitempty"`
	ReceivedAt time.Time   `json:"receivedAt"`
	Data       interface{} `json:"data"`
}

func NewRealtimeEvent(e notification.Entry) *RealtimeEventResource {
	return &RealtimeEventResource{
		ID:         e.ID,
		Category:   e.Category,
		DeviceID:   e.DeviceID,
		ReceivedAt: e.ReceivedAt,
		Data:       e.Payload,
	}
}
