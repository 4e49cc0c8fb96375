package sqlstore

import (
	"net/url"
	"strings"

	"github.com/ignacioelizeche/controlid/pkg/storage"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	// Database drivers selected by Open
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store contains all SQL-based sub-stores for managing the persistent models
type store struct {
	devices       *deviceStore
	sessions      *sessionStore
	notifications *notificationStore
	checkpoints   *checkpointStore
	accessLogs    *accessLogStore
}

// NewStore creates a new SQL-based Storage interface. Queries are written with
// '?' placeholders and rebound for the driver of db.
func NewStore(db *sqlx.DB) storage.Interface {
	return &store{
		devices:       newDeviceStore(db),
		sessions:      newSessionStore(db),
		notifications: newNotificationStore(db),
		checkpoints:   newCheckpointStore(db),
		accessLogs:    newAccessLogStore(db),
	}
}

// Devices returns a sub-store for managing the device model
func (s *store) Devices() storage.DeviceStore {
	return s.devices
}

// Sessions returns a sub-store for caching device sessions
func (s *store) Sessions() storage.SessionStore {
	return s.sessions
}

// Notifications returns a sub-store for device notifications
func (s *store) Notifications() storage.NotificationStore {
	return s.notifications
}

// Checkpoints returns a sub-store for sync checkpoints
func (s *store) Checkpoints() storage.CheckpointStore {
	return s.checkpoints
}

// AccessLogs returns a sub-store for archived access logs
func (s *store) AccessLogs() storage.AccessLogStore {
	return s.accessLogs
}

// ParseURL maps a database URL to a driver name and data source name.
// postgres:// and postgresql:// URLs are passed to lib/pq unchanged,
// sqlite3:// URLs are opened as a file path (":memory:" is accepted as is).
func ParseURL(databaseURL string) (driver, dsn string, err error) {
	if databaseURL == ":memory:" {
		return "sqlite3", databaseURL, nil
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to parse database url")
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		return "postgres", databaseURL, nil
	case "sqlite3", "sqlite":
		dsn = strings.TrimPrefix(databaseURL, u.Scheme+"://")
		if dsn == "" {
			return "", "", errors.Errorf("missing sqlite path in %q", databaseURL)
		}
		return "sqlite3", dsn, nil
	}

	return "", "", errors.Errorf("unsupported database scheme %q", u.Scheme)
}

// Open connects to the database behind databaseURL and checks the connection.
func Open(databaseURL string) (*sqlx.DB, error) {
	driver, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// SQLite allows a single writer; serialize access through one connection
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	return db, nil
}

// Connect opens the database, applies pending migrations and returns the
// store on top of it.
func Connect(databaseURL string) (storage.Interface, *sqlx.DB, error) {
	db, err := Open(databaseURL)
	if err != nil {
		return nil, nil, err
	}

	if _, err := Migrate(db); err != nil {
		db.Close()
		return nil, nil, err
	}

	return NewStore(db), db, nil
}
