package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/model"
)

type notificationStore struct {
	store  []model.Notification
	nextID int64
	sync.RWMutex
}

func newNotificationStore() *notificationStore {
	return &notificationStore{
		store:  make([]model.Notification, 0),
		nextID: 1,
	}
}

func (s *notificationStore) Create(_ context.Context, m *model.Notification) error {
	s.Lock()
	defer s.Unlock()

	m.ID = s.getNextID()
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = time.Now().UTC()
	}

	payload := make([]byte, len(m.Payload))
	copy(payload, m.Payload)
	stored := *m
	stored.Payload = payload

	s.store = append(s.store, stored)

	return nil
}

func (s *notificationStore) FetchRecent(_ context.Context, limit int) ([]model.Notification, error) {
	s.RLock()
	defer s.RUnlock()

	if limit <= 0 || limit > len(s.store) {
		limit = len(s.store)
	}
	models := make([]model.Notification, 0, limit)

	for i := len(s.store) - 1; i >= 0 && len(models) < limit; i-- {
		models = append(models, s.store[i])
	}

	return models, nil
}

func (s *notificationStore) getNextID() int64 {
	id := s.nextID
	s.nextID++
	return id
}
