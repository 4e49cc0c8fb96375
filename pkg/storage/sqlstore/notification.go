package sqlstore

import (
	"context"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

func newNotificationStore(db *sqlx.DB) *notificationStore {
	return &notificationStore{
		db: db,
	}
}

type notificationStore struct {
	db *sqlx.DB
}

type sqlDataNotification struct {
	ID         int64     `db:"id"`
	Category   string    `db:"category"`
	DeviceID   string    `db:"device_id"`
	Payload    []byte    `db:"payload"`
	ReceivedAt time.Time `db:"received_at"`
}

func (d *sqlDataNotification) Scan(m *model.Notification) error {
	receivedAt := m.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	payload := m.Payload
	if payload == nil {
		payload = []byte{}
	}

	d.ID = m.ID
	d.Category = m.Category
	d.DeviceID = m.DeviceID
	d.Payload = payload
	d.ReceivedAt = receivedAt.UTC()

	return nil
}

func (d *sqlDataNotification) Model() (*model.Notification, error) {
	m := &model.Notification{
		ID:         d.ID,
		Category:   d.Category,
		DeviceID:   d.DeviceID,
		Payload:    d.Payload,
		ReceivedAt: d.ReceivedAt,
	}

	return m, nil
}

func (s *notificationStore) Create(ctx context.Context, m *model.Notification) error {
	d := sqlDataNotification{}
	if err := d.Scan(m); err != nil {
		return errors.Wrap(err, "failed to convert notification model to SQL data")
	}

	query := s.db.Rebind(`INSERT INTO notifications (category, device_id, payload, received_at)
		VALUES (?, ?, ?, ?) RETURNING id`)
	row := s.db.QueryRowxContext(ctx, query, d.Category, d.DeviceID, d.Payload, d.ReceivedAt)
	if err := row.Scan(&m.ID); err != nil {
		return errors.Wrap(err, "failed to create notification")
	}
	m.ReceivedAt = d.ReceivedAt

	return nil
}

func (s *notificationStore) FetchRecent(ctx context.Context, limit int) ([]model.Notification, error) {
	rows := make([]sqlDataNotification, 0)

	var err error
	if limit > 0 {
		query := s.db.Rebind("SELECT * FROM notifications ORDER BY id DESC LIMIT ?")
		err = s.db.SelectContext(ctx, &rows, query, limit)
	} else {
		err = s.db.SelectContext(ctx, &rows, "SELECT * FROM notifications ORDER BY id DESC")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch notifications")
	}

	models := make([]model.Notification, 0, len(rows))
	for _, d := range rows {
		m, err := d.Model()
		if err != nil {
			return nil, errors.Wrap(err, "failed to convert SQL data to notification model")
		}
		models = append(models, *m)
	}

	return models, nil
}
