package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/sandevgo/vitalmem/pkg/log"
	"github.com/sandevgo/vitalmem/pkg/sqlite"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var migrateOnce sync.Once

func NewDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open(sqlite.DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := ensureFTS5(ctx, db); err != nil {
		return nil, err
	}

	if err := migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// ensureFTS5 fails fast, with a message naming the required build
// tag, when the linked sqlite lacks the FTS5 module the search index
// migrations depend on.
func ensureFTS5(ctx context.Context, db *sql.DB) error {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT count(*) FROM pragma_compile_options WHERE compile_options = 'ENABLE_FTS5'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to inspect sqlite compile options: %w", err)
	}
	if n == 0 {
		return errors.New("sqlite was built without FTS5; rebuild with -tags sqlite_fts5 (see Makefile)")
	}
	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	// goose's FS and dialect are package-level; set them once per process
	var setupErr error
	migrateOnce.Do(func() {
		goose.SetBaseFS(embedMigrations)
		goose.SetLogger(log.NewGooseLoggerFromCtx(ctx))
		setupErr = goose.SetDialect("sqlite3")
	})
	if setupErr != nil {
		return fmt.Errorf("failed to set goose dialect: %w", setupErr)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}
