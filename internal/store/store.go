package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// ErrBackupUnsupported is returned by Backup for drivers without a built-in
// online copy.
var ErrBackupUnsupported = errors.New("backup not supported for driver")

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type Store struct {
	db     *sqlx.DB
	driver string
}

// NewStore opens and pings a database. driver is "postgres" or "sqlite".
func NewStore(driver, databaseURL string) (*Store, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// one writer; also keeps a :memory: database alive across calls
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Driver returns the database driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	idCol := "BIGSERIAL PRIMARY KEY"
	if s.driver == DriverSQLite {
		idCol = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, strings.ReplaceAll(stmt, "{{id}}", idCol)); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// Backup writes a consistent copy of the database to path. Only sqlite
// supports this; postgres returns ErrBackupUnsupported.
func (s *Store) Backup(ctx context.Context, path string) error {
	if s.driver != DriverSQLite {
		return fmt.Errorf("%w %s", ErrBackupUnsupported, s.driver)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	return nil
}

// CanonicalBuyerID derives the buyer identity key from an email address.
func CanonicalBuyerID(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id {{id}},
		buyer_id TEXT NOT NULL DEFAULT '',
		buyer_email TEXT NOT NULL,
		buyer_name TEXT NOT NULL DEFAULT '',
		buyer_phone TEXT NOT NULL DEFAULT '',
		buyer_gender TEXT,
		total_participants INTEGER NOT NULL DEFAULT 1,
		product_name TEXT NOT NULL DEFAULT '',
		course TEXT NOT NULL DEFAULT '',
		option_raw TEXT NOT NULL DEFAULT '',
		recipient_name TEXT NOT NULL DEFAULT '',
		recipient_phone TEXT NOT NULL DEFAULT '',
		zipcode TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		address_detail TEXT NOT NULL DEFAULT '',
		total_amount BIGINT NOT NULL DEFAULT 0,
		is_cancelled BOOLEAN NOT NULL DEFAULT FALSE,
		cancelled_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_buyer_id ON orders (buyer_id)`,
	`CREATE TABLE IF NOT EXISTS participants (
		id {{id}},
		order_id BIGINT NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
		participant_index INTEGER NOT NULL,
		name TEXT,
		gender TEXT,
		birth_date TEXT,
		phone TEXT,
		course TEXT NOT NULL DEFAULT '',
		tshirt_size TEXT,
		emergency_contact TEXT,
		emergency_relation TEXT,
		option_raw TEXT NOT NULL DEFAULT '',
		is_primary BOOLEAN NOT NULL DEFAULT FALSE,
		is_completed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (order_id, participant_index)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		event_id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		order_id BIGINT,
		payload TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_order_id ON audit_log (order_id)`,
}
