package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/ignacioelizeche/controlid/pkg/storage"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

func newCheckpointStore(db *sqlx.DB) *checkpointStore {
	return &checkpointStore{
		db: db,
	}
}

type checkpointStore struct {
	db *sqlx.DB
}

type sqlDataCheckpoint struct {
	DeviceID    string    `db:"device_id"`
	LastLogID   int64     `db:"last_log_id"`
	LastLogTime int64     `db:"last_log_time"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (d *sqlDataCheckpoint) Model() (*model.SyncCheckpoint, error) {
	m := &model.SyncCheckpoint{
		DeviceID:    d.DeviceID,
		LastLogID:   d.LastLogID,
		LastLogTime: d.LastLogTime,
		UpdatedAt:   d.UpdatedAt,
	}

	return m, nil
}

func (s *checkpointStore) Get(ctx context.Context, deviceID string) (*model.SyncCheckpoint, error) {
	d := sqlDataCheckpoint{}
	query := s.db.Rebind("SELECT * FROM sync_checkpoints WHERE device_id=?")
	if err := s.db.GetContext(ctx, &d, query, deviceID); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find checkpoint")
	}

	return d.Model()
}

func (s *checkpointStore) Advance(ctx context.Context, m *model.SyncCheckpoint) error {
	d := sqlDataCheckpoint{
		DeviceID:    m.DeviceID,
		LastLogID:   m.LastLogID,
		LastLogTime: m.LastLogTime,
		UpdatedAt:   time.Now().Round(time.Second).UTC(),
	}

	// The conditional update keeps the checkpoint monotonic under concurrent writers
	query := `INSERT INTO sync_checkpoints (device_id, last_log_id, last_log_time, updated_at)
		VALUES (:device_id, :last_log_id, :last_log_time, :updated_at)
		ON CONFLICT (device_id) DO UPDATE SET
			last_log_id = excluded.last_log_id,
			last_log_time = excluded.last_log_time,
			updated_at = excluded.updated_at
		WHERE sync_checkpoints.last_log_id < excluded.last_log_id`
	if _, err := s.db.NamedExecContext(ctx, query, d); err != nil {
		return errors.Wrap(err, "failed to advance checkpoint")
	}

	m.UpdatedAt = d.UpdatedAt

	return nil
}
