package sqlstore

import (
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
)

var postgresMigrations = []*migrate.Migration{
	{
		Id: "1_init",
		Up: []string{
			`CREATE TABLE devices (
				id VARCHAR(64) PRIMARY KEY,
				name VARCHAR(255) NOT NULL DEFAULT '',
				address VARCHAR(255) NOT NULL,
				protocol VARCHAR(8) NOT NULL DEFAULT 'http',
				login VARCHAR(255) NOT NULL DEFAULT '',
				password VARCHAR(255) NOT NULL DEFAULT '',
				defaults TEXT NOT NULL DEFAULT '{}',
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE sessions (
				device_id VARCHAR(64) PRIMARY KEY,
				token VARCHAR(255) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				expires_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE notifications (
				id BIGSERIAL PRIMARY KEY,
				category VARCHAR(64) NOT NULL,
				device_id VARCHAR(64) NOT NULL DEFAULT '',
				payload BYTEA NOT NULL,
				received_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE sync_checkpoints (
				device_id VARCHAR(64) PRIMARY KEY,
				last_log_id BIGINT NOT NULL,
				last_log_time BIGINT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE access_logs (
				source VARCHAR(64) NOT NULL,
				id BIGINT NOT NULL,
				log_time BIGINT NOT NULL,
				event BIGINT NOT NULL,
				device_id BIGINT NOT NULL,
				identifier_id BIGINT NOT NULL,
				user_id BIGINT NOT NULL,
				portal_id BIGINT NOT NULL,
				identification_rule_id BIGINT NOT NULL,
				card_value BIGINT NOT NULL,
				qrcode_value TEXT NOT NULL,
				pin_value TEXT NOT NULL,
				confidence BIGINT NOT NULL,
				mask BIGINT NOT NULL,
				log_type_id BIGINT NOT NULL,
				component_id BIGINT NOT NULL,
				PRIMARY KEY (source, id)
			)`,
		},
		Down: []string{
			"DROP TABLE access_logs",
			"DROP TABLE sync_checkpoints",
			"DROP TABLE notifications",
			"DROP TABLE sessions",
			"DROP TABLE devices",
		},
	},
	{
		Id: "2_device_sync",
		Up: []string{
			"ALTER TABLE devices ADD COLUMN sync_disabled BOOLEAN NOT NULL DEFAULT FALSE",
		},
		Down: []string{
			"ALTER TABLE devices DROP COLUMN sync_disabled",
		},
	},
}

var sqliteMigrations = []*migrate.Migration{
	{
		Id: "1_init",
		Up: []string{
			`CREATE TABLE devices (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL DEFAULT '',
				address TEXT NOT NULL,
				protocol TEXT NOT NULL DEFAULT 'http',
				login TEXT NOT NULL DEFAULT '',
				password TEXT NOT NULL DEFAULT '',
				defaults TEXT NOT NULL DEFAULT '{}',
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE sessions (
				device_id TEXT PRIMARY KEY,
				token TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				expires_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE notifications (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				category TEXT NOT NULL,
				device_id TEXT NOT NULL DEFAULT '',
				payload BLOB NOT NULL,
				received_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE sync_checkpoints (
				device_id TEXT PRIMARY KEY,
				last_log_id INTEGER NOT NULL,
				last_log_time INTEGER NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE access_logs (
				source TEXT NOT NULL,
				id INTEGER NOT NULL,
				log_time INTEGER NOT NULL,
				event INTEGER NOT NULL,
				device_id INTEGER NOT NULL,
				identifier_id INTEGER NOT NULL,
				user_id INTEGER NOT NULL,
				portal_id INTEGER NOT NULL,
				identification_rule_id INTEGER NOT NULL,
				card_value INTEGER NOT NULL,
				qrcode_value TEXT NOT NULL,
				pin_value TEXT NOT NULL,
				confidence INTEGER NOT NULL,
				mask INTEGER NOT NULL,
				log_type_id INTEGER NOT NULL,
				component_id INTEGER NOT NULL,
				PRIMARY KEY (source, id)
			)`,
		},
		Down: []string{
			"DROP TABLE access_logs",
			"DROP TABLE sync_checkpoints",
			"DROP TABLE notifications",
			"DROP TABLE sessions",
			"DROP TABLE devices",
		},
	},
	{
		Id: "2_device_sync",
		Up: []string{
			"ALTER TABLE devices ADD COLUMN sync_disabled BOOLEAN NOT NULL DEFAULT 0",
		},
		Down: []string{
			"ALTER TABLE devices DROP COLUMN sync_disabled",
		},
	},
}

// Migrations returns the schema migrations for the given sqlx driver name.
func Migrations(driver string) (*migrate.MemoryMigrationSource, error) {
	switch driver {
	case "postgres":
		return &migrate.MemoryMigrationSource{Migrations: postgresMigrations}, nil
	case "sqlite3":
		return &migrate.MemoryMigrationSource{Migrations: sqliteMigrations}, nil
	}
	return nil, errors.Errorf("no migrations for driver %q", driver)
}

// Migrate applies all pending up migrations and returns how many were applied.
func Migrate(db *sqlx.DB) (int, error) {
	source, err := Migrations(db.DriverName())
	if err != nil {
		return 0, err
	}

	n, err := migrate.Exec(db.DB, db.DriverName(), source, migrate.Up)
	if err != nil {
		return 0, errors.Wrap(err, "failed to apply migrations")
	}

	return n, nil
}
