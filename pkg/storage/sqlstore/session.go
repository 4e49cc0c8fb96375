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

func newSessionStore(db *sqlx.DB) *sessionStore {
	return &sessionStore{
		db: db,
	}
}

type sessionStore struct {
	db *sqlx.DB
}

type sqlDataSession struct {
	DeviceID  string    `db:"device_id"`
	Token     string    `db:"token"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

func (d *sqlDataSession) Scan(m *model.Session) error {
	d.DeviceID = m.DeviceID
	d.Token = m.Token
	d.CreatedAt = m.CreatedAt.UTC()
	d.ExpiresAt = m.ExpiresAt.UTC()

	return nil
}

func (d *sqlDataSession) Model() (*model.Session, error) {
	m := &model.Session{
		DeviceID:  d.DeviceID,
		Token:     d.Token,
		CreatedAt: d.CreatedAt,
		ExpiresAt: d.ExpiresAt,
	}

	return m, nil
}

func (s *sessionStore) Get(ctx context.Context, deviceID string) (*model.Session, error) {
	d := sqlDataSession{}
	query := s.db.Rebind("SELECT * FROM sessions WHERE device_id=?")
	if err := s.db.GetContext(ctx, &d, query, deviceID); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find session")
	}

	return d.Model()
}

func (s *sessionStore) Put(ctx context.Context, m *model.Session) error {
	d := sqlDataSession{}
	if err := d.Scan(m); err != nil {
		return errors.Wrap(err, "failed to convert session model to SQL data")
	}

	query := `INSERT INTO sessions (device_id, token, created_at, expires_at)
		VALUES (:device_id, :token, :created_at, :expires_at)
		ON CONFLICT (device_id) DO UPDATE SET
			token = excluded.token,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`
	if _, err := s.db.NamedExecContext(ctx, query, d); err != nil {
		return errors.Wrap(err, "failed to store session")
	}

	return nil
}

func (s *sessionStore) Delete(ctx context.Context, deviceID string) error {
	query := s.db.Rebind("DELETE FROM sessions WHERE device_id=?")
	if _, err := s.db.ExecContext(ctx, query, deviceID); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}

	return nil
}

func (s *sessionStore) DeleteToken(ctx context.Context, deviceID, token string) error {
	query := s.db.Rebind("DELETE FROM sessions WHERE device_id=? AND token=?")
	if _, err := s.db.ExecContext(ctx, query, deviceID, token); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}

	return nil
}

func (s *sessionStore) FetchAll(ctx context.Context) ([]model.Session, error) {
	rows := make([]sqlDataSession, 0)

	query := "SELECT * FROM sessions ORDER BY device_id"
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "failed to fetch all sessions")
	}

	models := make([]model.Session, 0, len(rows))
	for _, d := range rows {
		m, err := d.Model()
		if err != nil {
			return nil, errors.Wrap(err, "failed to convert SQL data to session model")
		}
		models = append(models, *m)
	}

	return models, nil
}
