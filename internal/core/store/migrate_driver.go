package store

import (
	"database/sql"
	"fmt"
	"io"

	"github.com/golang-migrate/migrate/v4/database"
)

// sqliteMigrateDriver adapts modernc.org/sqlite (the CGO-free driver this
// module uses) to golang-migrate's database.Driver interface. migrate's own
// bundled sqlite3 driver hard-imports mattn/go-sqlite3, which this module
// deliberately does not depend on; this shim reuses migrate's source
// handling and migration bookkeeping (schema_migrations table, dirty-state
// tracking) while running every statement through the already-open
// modernc-backed *sql.DB.
type sqliteMigrateDriver struct {
	db *sql.DB
}

const migrateDriverName = "modernc-sqlite"

func newSqliteMigrateDriver(db *sql.DB) (database.Driver, error) {
	d := &sqliteMigrateDriver{db: db}
	if err := d.ensureVersionTable(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *sqliteMigrateDriver) ensureVersionTable() error {
	_, err := d.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT NOT NULL PRIMARY KEY,
		dirty BOOLEAN NOT NULL
	)`)
	return err
}

func (d *sqliteMigrateDriver) Open(url string) (database.Driver, error) {
	return nil, fmt.Errorf("modernc-sqlite: Open by URL unsupported, use newSqliteMigrateDriver with an existing *sql.DB")
}

func (d *sqliteMigrateDriver) Close() error { return nil } // db lifecycle owned by Store

func (d *sqliteMigrateDriver) Lock() error   { return nil } // single-process, single-connection-pool: no cross-process lock needed
func (d *sqliteMigrateDriver) Unlock() error { return nil }

func (d *sqliteMigrateDriver) Run(migration io.Reader) error {
	body, err := io.ReadAll(migration)
	if err != nil {
		return err
	}
	if _, err := d.db.Exec(string(body)); err != nil {
		return fmt.Errorf("modernc-sqlite: run migration: %w", err)
	}
	return nil
}

func (d *sqliteMigrateDriver) SetVersion(version int, dirty bool) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM schema_migrations"); err != nil {
		tx.Rollback()
		return err
	}
	if version >= 0 {
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, dirty) VALUES (?, ?)", version, dirty); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (d *sqliteMigrateDriver) Version() (version int, dirty bool, err error) {
	row := d.db.QueryRow("SELECT version, dirty FROM schema_migrations LIMIT 1")
	err = row.Scan(&version, &dirty)
	if err == sql.ErrNoRows {
		return database.NilVersion, false, nil
	}
	return version, dirty, err
}

func (d *sqliteMigrateDriver) Drop() error {
	rows, err := d.db.Query("SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return err
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		names = append(names, name)
	}
	rows.Close()
	for _, name := range names {
		if _, err := d.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %q", name)); err != nil {
			return err
		}
	}
	return d.ensureVersionTable()
}
