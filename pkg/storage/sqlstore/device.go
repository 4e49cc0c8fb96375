package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/ignacioelizeche/controlid/pkg/storage"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

func newDeviceStore(db *sqlx.DB) *deviceStore {
	return &deviceStore{
		db: db,
	}
}

type deviceStore struct {
	db *sqlx.DB
}

type sqlDataDevice struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Address      string    `db:"address"`
	Protocol     string    `db:"protocol"`
	Login        string    `db:"login"`
	Password     string    `db:"password"`
	Defaults     string    `db:"defaults"`
	SyncDisabled bool      `db:"sync_disabled"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

var sqlParamsDevice = []string{
	"id",
	"name",
	"address",
	"protocol",
	"login",
	"password",
	"defaults",
	"sync_disabled",
	"created_at",
	"updated_at",
}

func (d *sqlDataDevice) Scan(m *model.Device) error {
	var createdAt, updatedAt = m.CreatedAt, m.UpdatedAt

	if m.CreatedAt.IsZero() {
		createdAt = time.Now().Round(time.Second).UTC()
	}

	if m.UpdatedAt.IsZero() {
		updatedAt = time.Now().Round(time.Second).UTC()
	}

	defaults := []byte("{}")
	if len(m.Defaults) > 0 {
		b, err := json.Marshal(m.Defaults)
		if err != nil {
			return errors.Wrap(err, "failed to encode device defaults")
		}
		defaults = b
	}

	d.ID = m.ID
	d.Name = m.Name
	d.Address = m.Address
	d.Protocol = m.Protocol
	d.Login = m.Login
	d.Password = m.Password
	d.Defaults = string(defaults)
	d.SyncDisabled = m.SyncDisabled
	d.CreatedAt = createdAt
	d.UpdatedAt = updatedAt

	return nil
}

func (d *sqlDataDevice) Model() (*model.Device, error) {
	m := &model.Device{
		ID:           d.ID,
		Name:         d.Name,
		Address:      d.Address,
		Protocol:     d.Protocol,
		Login:        d.Login,
		Password:     d.Password,
		SyncDisabled: d.SyncDisabled,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}

	if d.Defaults != "" && d.Defaults != "{}" {
		if err := json.Unmarshal([]byte(d.Defaults), &m.Defaults); err != nil {
			return nil, errors.Wrap(err, "failed to decode device defaults")
		}
	}

	return m, nil
}

func (s *deviceStore) Get(ctx context.Context, id string) (*model.Device, error) {
	d := sqlDataDevice{}
	query := s.db.Rebind("SELECT * FROM devices WHERE id=?")
	if err := s.db.GetContext(ctx, &d, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find device")
	}

	return d.Model()
}

func (s *deviceStore) List(ctx context.Context) ([]model.Device, error) {
	rows := make([]sqlDataDevice, 0)

	query := "SELECT * FROM devices ORDER BY id"
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "failed to fetch all devices")
	}

	models := make([]model.Device, 0, len(rows))
	for _, d := range rows {
		m, err := d.Model()
		if err != nil {
			return nil, errors.Wrap(err, "failed to convert SQL data to device model")
		}

		models = append(models, *m)
	}

	return models, nil
}

func (s *deviceStore) Create(ctx context.Context, m *model.Device) error {
	if m.Protocol == "" {
		m.Protocol = "http"
	}

	if _, err := s.Get(ctx, m.ID); err == nil {
		return storage.ErrAlreadyExists
	} else if err != storage.ErrNotFound {
		return err
	}

	d := sqlDataDevice{}
	if err := d.Scan(m); err != nil {
		return errors.Wrap(err, "failed to convert device model to SQL data")
	}

	query := fmt.Sprintf(
		"INSERT INTO devices (%s) VALUES (%s)",
		strings.Join(sqlParamsDevice, ", "),
		":"+strings.Join(sqlParamsDevice, ", :"),
	)
	if _, err := s.db.NamedExecContext(ctx, query, d); err != nil {
		return errors.Wrap(err, "failed to create device")
	}

	m.CreatedAt = d.CreatedAt
	m.UpdatedAt = d.UpdatedAt

	return nil
}

func (s *deviceStore) SetSyncEnabled(ctx context.Context, id string, enabled bool) error {
	query := s.db.Rebind("UPDATE devices SET sync_disabled=?, updated_at=? WHERE id=?")
	updatedAt := time.Now().Round(time.Second).UTC()
	res, err := s.db.ExecContext(ctx, query, !enabled, updatedAt, id)
	if err != nil {
		return errors.Wrap(err, "failed to update device sync flag")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}

	return nil
}

func (s *deviceStore) Delete(ctx context.Context, id string) error {
	query := s.db.Rebind("DELETE FROM devices WHERE id=?")
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete device")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}

	return nil
}
