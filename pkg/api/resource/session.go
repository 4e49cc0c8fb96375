package resource

import (
	"time"

	"github.com/ignacioelizeche/controlid/pkg/model"
)

type SessionResource struct {
	DeviceID  string    `json:"deviceId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Expired   bool      `json:"expired"`
}

type SessionListResource struct {
	Members []*SessionResource `json:"members"`
}

func NewSession(m *model.Session, now time.Time) (out *SessionResource) {
	out = &SessionResource{
		DeviceID:  m.DeviceID,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
		Expired:   m.Expired(now),
	}

	return // out
}

func NewSessionList(m []model.Session, now time.Time) (out *SessionListResource) {
	out = &SessionListResource{
		Members: make([]*SessionResource, 0, len(m)),
	}

	for i := range m {
		out.Members = append(out.Members, NewSession(&m[i], now))
	}

	return // out
}
