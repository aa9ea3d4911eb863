// Package store is the SQLite-backed persistence layer: snapshot rows, work
// items, summaries, LLM usage log and quota snapshots, per §6 of the
// persisted schema. All multi-row writes run inside a transaction; the
// unique indexes declared in the migration enforce the data model's
// uniqueness invariants so upserts are safe under concurrent writers.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the process-wide handle to the embedded database. A single
// instance is created at startup and passed by reference; it owns the
// connection pool and is closed at shutdown.
type Store struct {
	DB  *sqlx.DB
	log *slog.Logger
}

// Open opens (creating if necessary) the SQLite database at path, applies
// pending migrations, and returns a ready Store. path is typically the
// configured DBPath, overridable by RECAP_DB_PATH.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Writers are serialized by the pool; a small pool keeps SQLite
	// contention low while still letting readers run concurrently.
	db.SetMaxOpenConns(8)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}

	if err := applyMigrations(db.DB, log); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{DB: db, log: log}, nil
}

func applyMigrations(db *sql.DB, log *slog.Logger) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: load migrations: %w", err)
	}
	dbDriver, err := newSqliteMigrateDriver(db)
	if err != nil {
		return fmt.Errorf("store: init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, migrateDriverName, dbDriver)
	if err != nil {
		return fmt.Errorf("store: init migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("store: apply migrations: %w", err)
	}
	log.Info("migrations applied")
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}
