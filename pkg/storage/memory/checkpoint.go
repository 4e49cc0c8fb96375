package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/ignacioelizeche/controlid/pkg/storage"
)

type checkpointStore struct {
	store map[string]model.SyncCheckpoint
	sync.RWMutex
}

func newCheckpointStore() *checkpointStore {
	return &checkpointStore{
		store: make(map[string]model.SyncCheckpoint),
	}
}

func (s *checkpointStore) Get(_ context.Context, deviceID string) (*model.SyncCheckpoint, error) {
	s.RLock()
	defer s.RUnlock()
	if m, ok := s.store[deviceID]; ok {
		return &m, nil
	}

	return nil, storage.ErrNotFound
}

func (s *checkpointStore) Advance(_ context.Context, m *model.SyncCheckpoint) error {
	s.Lock()
	defer s.Unlock()

	if cur, ok := s.store[m.DeviceID]; ok && cur.LastLogID >= m.LastLogID {
		return nil
	}

	m.UpdatedAt = time.Now().Round(time.Second).UTC()
	s.store[m.DeviceID] = *m

	return nil
}
