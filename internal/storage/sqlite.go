package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.
)

// migration is a single schema step.
type migration struct {
	version int
	sql     string
}

// migrations are applied in order, each exactly once, tracked by the
// schema_migrations table.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE devices (
    instance    TEXT PRIMARY KEY,
    host        TEXT NOT NULL,
    addr        TEXT NOT NULL DEFAULT '',
    port        INTEGER NOT NULL,
    board       TEXT NOT NULL DEFAULT '',
    model       TEXT NOT NULL DEFAULT '',
    stream_port INTEGER NOT NULL DEFAULT 0,
    framesize   INTEGER NOT NULL DEFAULT 0,
    pixformat   INTEGER NOT NULL DEFAULT 0,
    first_seen  DATETIME NOT NULL,
    last_seen   DATETIME NOT NULL
);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX idx_devices_last_seen ON devices(last_seen);
`,
	},
}

// NewSQLiteDB opens (or creates) the database at dbPath, sets WAL mode and a
// busy timeout, and runs pending migrations. The second value reports whether
// the database was created by this call.
func NewSQLiteDB(dbPath string) (*sql.DB, bool, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, false, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, false, fmt.Errorf("opening database: %w", err)
	}

	// SQLite is single-writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, pragmaErr := db.ExecContext(ctx, p); pragmaErr != nil {
			closeQuietly(db, "pragma error")
			return nil, false, fmt.Errorf("setting pragma %q: %w", p, pragmaErr)
		}
	}

	fresh, err := runMigrations(ctx, db)
	if err != nil {
		closeQuietly(db, "migration error")
		return nil, false, fmt.Errorf("running migrations: %w", err)
	}

	return db, fresh, nil
}

func closeQuietly(db *sql.DB, reason string) {
	if cerr := db.Close(); cerr != nil {
		slog.Warn("failed to close database", slog.String("after", reason), slog.String("error", cerr.Error()))
	}
}

// runMigrations applies pending migrations and reports whether version 1 was
// among them.
func runMigrations(ctx context.Context, db *sql.DB) (bool, error) {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return false, fmt.Errorf("creating schema_migrations table: %w", err)
	}

	current, err := currentVersion(ctx, db)
	if err != nil {
		return false, err
	}

	fresh := false
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if m.version == 1 {
			fresh = true
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return false, err
		}
	}
	return fresh, nil
}

// applyMigration runs one migration inside a transaction.
func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.version, err)
	}

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		rollback(tx, m.version)
		return fmt.Errorf("migration %d: %w", m.version, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.version, time.Now().UTC(),
	); err != nil {
		rollback(tx, m.version)
		return fmt.Errorf("recording migration %d: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.version, err)
	}
	return nil
}

func rollback(tx *sql.Tx, version int) {
	if rbErr := tx.Rollback(); rbErr != nil {
		slog.Warn("failed to rollback migration", slog.Int("version", version), slog.String("error", rbErr.Error()))
	}
}

func currentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("querying current schema version: %w", err)
	}
	return v, nil
}
