package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/ignacioelizeche/controlid/pkg/storage"
)

type sessionStore struct {
	store    map[string]model.Session
	capacity int
	sync.RWMutex
}

// NewSessionStore returns a session cache holding at most capacity sessions.
// When full, the session created first is evicted.
func NewSessionStore(capacity int) *sessionStore {
	if capacity <= 0 {
		capacity = 1
	}
	return &sessionStore{
		store:    make(map[string]model.Session),
		capacity: capacity,
	}
}

func (s *sessionStore) Get(_ context.Context, deviceID string) (*model.Session, error) {
	s.RLock()
	defer s.RUnlock()
	if m, ok := s.store[deviceID]; ok {
		return &m, nil
	}

	return nil, storage.ErrNotFound
}

func (s *sessionStore) Put(_ context.Context, m *model.Session) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.store[m.DeviceID]; !ok && len(s.store) >= s.capacity {
		s.evictOldest()
	}
	s.store[m.DeviceID] = *m

	return nil
}

func (s *sessionStore) Delete(_ context.Context, deviceID string) error {
	s.Lock()
	defer s.Unlock()

	delete(s.store, deviceID)

	return nil
}

func (s *sessionStore) DeleteToken(_ context.Context, deviceID, token string) error {
	s.Lock()
	defer s.Unlock()

	if m, ok := s.store[deviceID]; ok && m.Token == token {
		delete(s.store, deviceID)
	}

	return nil
}

func (s *sessionStore) FetchAll(_ context.Context) ([]model.Session, error) {
	s.RLock()
	defer s.RUnlock()
	models := make([]model.Session, 0, len(s.store))

	for _, m := range s.store {
		models = append(models, m)
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].DeviceID < models[j].DeviceID
	})

	return models, nil
}

func (s *sessionStore) evictOldest() {
	var oldest string
	first := true
	for id, m := range s.store {
		if first || m.CreatedAt.Before(s.store[oldest].CreatedAt) {
			oldest = id
			first = false
		}
	}
	if !first {
		delete(s.store, oldest)
	}
}
