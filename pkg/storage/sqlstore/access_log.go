package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/ignacioelizeche/controlid/pkg/model"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

func newAccessLogStore(db *sqlx.DB) *accessLogStore {
	return &accessLogStore{
		db: db,
	}
}

type accessLogStore struct {
	db *sqlx.DB
}

type sqlDataAccessLog struct {
	Source               string `db:"source"`
	ID                   int64  `db:"id"`
	Time                 int64  `db:"log_time"`
	Event                int64  `db:"event"`
	DeviceID             int64  `db:"device_id"`
	IdentifierID         int64  `db:"identifier_id"`
	UserID               int64  `db:"user_id"`
	PortalID             int64  `db:"portal_id"`
	IdentificationRuleID int64  `db:"identification_rule_id"`
	CardValue            int64  `db:"card_value"`
	QRCodeValue          string `db:"qrcode_value"`
	PinValue             string `db:"pin_value"`
	Confidence           int64  `db:"confidence"`
	Mask                 int64  `db:"mask"`
	LogTypeID            int64  `db:"log_type_id"`
	ComponentID          int64  `db:"component_id"`
}

var sqlParamsAccessLog = []string{
	"source",
	"id",
	"log_time",
	"event",
	"device_id",
	"identifier_id",
	"user_id",
	"portal_id",
	"identification_rule_id",
	"card_value",
	"qrcode_value",
	"pin_value",
	"confidence",
	"mask",
	"log_type_id",
	"component_id",
}

func (d *sqlDataAccessLog) Scan(source string, m *model.AccessLog) {
	d.Source = source
	d.ID = m.ID
	d.Time = m.Time
	d.Event = m.Event
	d.DeviceID = m.DeviceID
	d.IdentifierID = m.IdentifierID
	d.UserID = m.UserID
	d.PortalID = m.PortalID
	d.IdentificationRuleID = m.IdentificationRuleID
	d.CardValue = m.CardValue
	d.QRCodeValue = m.QRCodeValue
	d.PinValue = m.PinValue
	d.Confidence = m.Confidence
	d.Mask = m.Mask
	d.LogTypeID = m.LogTypeID
	d.ComponentID = m.ComponentID
}

func (d *sqlDataAccessLog) Model() model.AccessLog {
	return model.AccessLog{
		ID:                   d.ID,
		Time:                 d.Time,
		Event:                d.Event,
		DeviceID:             d.DeviceID,
		IdentifierID:         d.IdentifierID,
		UserID:               d.UserID,
		PortalID:             d.PortalID,
		IdentificationRuleID: d.IdentificationRuleID,
		CardValue:            d.CardValue,
		QRCodeValue:          d.QRCodeValue,
		PinValue:             d.PinValue,
		Confidence:           d.Confidence,
		Mask:                 d.Mask,
		LogTypeID:            d.LogTypeID,
		ComponentID:          d.ComponentID,
		Source:               d.Source,
	}
}

func (s *accessLogStore) Save(ctx context.Context, deviceID string, logs []model.AccessLog) (int, error) {
	if len(logs) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(
		"INSERT INTO access_logs (%s) VALUES (%s) ON CONFLICT (source, id) DO NOTHING",
		strings.Join(sqlParamsAccessLog, ", "),
		":"+strings.Join(sqlParamsAccessLog, ", :"),
	)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin access log transaction")
	}

	inserted := 0
	for i := range logs {
		d := sqlDataAccessLog{}
		d.Scan(deviceID, &logs[i])

		res, err := tx.NamedExecContext(ctx, query, d)
		if err != nil {
			tx.Rollback()
			return 0, errors.Wrapf(err, "failed to save access log %d", d.ID)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit access logs")
	}

	return inserted, nil
}

func (s *accessLogStore) FetchByDevice(ctx context.Context, deviceID string, afterID int64, limit int) ([]model.AccessLog, error) {
	rows := make([]sqlDataAccessLog, 0)

	var err error
	if limit > 0 {
		query := s.db.Rebind("SELECT * FROM access_logs WHERE source=? AND id>? ORDER BY id LIMIT ?")
		err = s.db.SelectContext(ctx, &rows, query, deviceID, afterID, limit)
	} else {
		query := s.db.Rebind("SELECT * FROM access_logs WHERE source=? AND id>? ORDER BY id")
		err = s.db.SelectContext(ctx, &rows, query, deviceID, afterID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch access logs")
	}

	models := make([]model.AccessLog, 0, len(rows))
	for _, d := range rows {
		models = append(models, d.Model())
	}

	return models, nil
}
