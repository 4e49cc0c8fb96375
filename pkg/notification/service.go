package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/metrics"
	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/ignacioelizeche/controlid/pkg/storage"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrUnknownCategory is returned for category names the relay does not know.
	ErrUnknownCategory = errors.New("unknown notification category")
	// ErrCategoryDisabled is returned for known categories switched off in the configuration.
	ErrCategoryDisabled = errors.New("notification category disabled")
)

// Publisher fans out stored notifications. Failures never fail ingestion.
type Publisher interface {
	Publish(n *model.Notification) error
}

// Entry is a stored notification with its payload decoded when it is JSON.
type Entry struct {
	ID         int64       `json:"id"`
	Category   string      `json:"category"`
	DeviceID   string      `json:"device_id,omitempty"`
	Payload    interface{} `json:"payload"`
	ReceivedAt time.Time   `json:"received_at"`
}

// Service ingests device notifications into an append-only store.
type Service struct {
	store      storage.NotificationStore
	enabled    map[string]bool
	publishers []Publisher
	now        func() time.Time
}

// NewService returns a notification service accepting the given categories.
// An empty list enables every category.
func NewService(store storage.NotificationStore, enabled []string, publishers ...Publisher) (*Service, error) {
	s := &Service{
		store:      store,
		enabled:    make(map[string]bool),
		publishers: publishers,
		now:        time.Now,
	}

	if len(enabled) == 0 {
		enabled = Categories
	}
	for _, name := range enabled {
		c, ok := Normalize(name)
		if !ok {
			return nil, errors.Wrapf(ErrUnknownCategory, "category %q", name)
		}
		s.enabled[c] = true
	}

	return s, nil
}

// Enabled reports whether notifications of the category are accepted.
func (s *Service) Enabled(category string) bool {
	c, ok := Normalize(category)
	return ok && s.enabled[c]
}

// Ingest stores a notification verbatim and hands it to the publishers.
func (s *Service) Ingest(ctx context.Context, category, deviceID string, payload []byte) (*model.Notification, error) {
	c, ok := Normalize(category)
	if !ok {
		return nil, ErrUnknownCategory
	}
	if !s.enabled[c] {
		return nil, ErrCategoryDisabled
	}

	n := &model.Notification{
		Category:   c,
		DeviceID:   deviceID,
		Payload:    payload,
		ReceivedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, errors.Wrap(err, "failed to store notification")
	}

	metrics.IncNotification(c)

	logger := log.WithFields(log.Fields{
		"category":  c,
		"device_id": deviceID,
		"id":        n.ID,
	})
	logger.Debug("notification stored")

	for _, p := range s.publishers {
		if err := p.Publish(n); err != nil {
			logger.Warnf("failed to publish notification: %v", err)
		}
	}

	return n, nil
}

// List returns the most recent notifications, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Entry, error) {
	ns, err := s.store.FetchRecent(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch notifications")
	}

	entries := make([]Entry, 0, len(ns))
	for i := range ns {
		entries = append(entries, NewEntry(&ns[i]))
	}

	return entries, nil
}

// NewEntry decodes the payload of n when it holds JSON and keeps it as a
// string otherwise.
func NewEntry(n *model.Notification) Entry {
	e := Entry{
		ID:         n.ID,
		Category:   n.Category,
		DeviceID:   n.DeviceID,
		ReceivedAt: n.ReceivedAt,
	}

	var v interface{}
	if len(n.Payload) > 0 && json.Unmarshal(n.Payload, &v) == nil {
		e.Payload = v
	} else {
		e.Payload = string(n.Payload)
	}

	return e
}
