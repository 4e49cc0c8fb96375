package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ignacioelizeche/controlid/pkg/model"
)

type accessLogStore struct {
	store map[string]map[int64]model.AccessLog
	sync.RWMutex
}

func newAccessLogStore() *accessLogStore {
	return &accessLogStore{
		store: make(map[string]map[int64]model.AccessLog),
	}
}

func (s *accessLogStore) Save(_ context.Context, deviceID string, logs []model.AccessLog) (int, error) {
	s.Lock()
	defer s.Unlock()

	byID, ok := s.store[deviceID]
	if !ok {
		byID = make(map[int64]model.AccessLog)
		s.store[deviceID] = byID
	}

	inserted := 0
	for _, l := range logs {
		if _, exists := byID[l.ID]; exists {
			continue
		}
		l.Source = deviceID
		byID[l.ID] = l
		inserted++
	}

	return inserted, nil
}

func (s *accessLogStore) FetchByDevice(_ context.Context, deviceID string, afterID int64, limit int) ([]model.AccessLog, error) {
	s.RLock()
	defer s.RUnlock()

	models := make([]model.AccessLog, 0)
	for id, l := range s.store[deviceID] {
		if id > afterID {
			models = append(models, l)
		}
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].ID < models[j].ID
	})
	if limit > 0 && len(models) > limit {
		models = models[:limit]
	}

	return models, nil
}
