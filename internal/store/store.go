// Package store is the sqlite-backed persistence layer. It implements every
// provider interface the engine reads through, and owns the authoritative
// confirmation boundary: the engine's Allow verdict is advisory, and
// ConfirmBooking re-verifies slot overlap inside a write transaction so two
// racing requests can never both win the same slots.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const dateFormat = "2006-01-02"

type Store struct {
	db *sql.DB
}

// New opens a SQLite database at the given path, ensures foreign keys and
// immediate write transactions are enabled in the DSN, and applies embedded
// migrations.
func New(dataSourceName string) (*Store, error) {
	dataSourceName = ensureDSNOptions(dataSourceName)
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// SQLite allows one writer; a second connection attempting a write
	// transaction fails fast instead of deadlocking.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// RunInTx executes fn inside a transaction, committing on nil and rolling
// back otherwise.
func (s *Store) RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ensureDSNOptions appends `_fk=1` (foreign key enforcement) and
// `_txlock=immediate` (write transactions take the write lock up front) to
// the DSN if missing.
func ensureDSNOptions(dsn string) string {
	for _, opt := range []string{"_fk=1", "_txlock=immediate"} {
		key := opt[:strings.Index(opt, "=")+1]
		if strings.Contains(dsn, key) {
			continue
		}
		if strings.Contains(dsn, "?") {
			dsn += "&" + opt
		} else {
			dsn += "?" + opt
		}
	}
	return dsn
}

func runMigrations(db *sql.DB) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}
	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// Migrator opens the database at the given path and returns a migrate
// instance backed by the embedded migration set, for tooling that needs
// more than New's automatic Up (rollback, version inspection). The caller
// owns Close on the returned instance.
func Migrator(dataSourceName string) (*migrate.Migrate, error) {
	db, err := sql.Open("sqlite3", ensureDSNOptions(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	m, err := newMigrator(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func formatDate(date time.Time) string {
	return date.Format(dateFormat)
}

func parseDate(value string) (time.Time, error) {
	date, err := time.Parse(dateFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse booking date %q: %w", value, err)
	}
	return date, nil
}
