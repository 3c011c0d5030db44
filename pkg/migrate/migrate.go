// Package migrate owns the storefront schema: the goose SQL migrations
// embedded in every binary, the sqlite mirror used by local runs and tests,
// and the helpers behind cmd/migrate.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
)

// DefaultDir is where new migration files are written from the repo root.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

// Migrator applies the storefront migrations to Postgres. The migrations use
// BIGSERIAL, JSONB and partial indexes, so no other dialect is supported.
type Migrator struct {
	provider *goose.Provider
}

// NewMigrator reads migrations from dir, or from the embedded set when dir
// is empty. Runs hold a Postgres advisory lock so that several processes
// starting at once apply each migration a single time. The caller keeps
// ownership of db.
func NewMigrator(db *sql.DB, dir string) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	fsys := Embedded()
	if dir != "" {
		fsys = os.DirFS(dir)
	}
	locker, err := lock.NewPostgresSessionLocker()
	if err != nil {
		return nil, fmt.Errorf("migration lock: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys, goose.WithSessionLocker(locker))
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

func (m *Migrator) Up(ctx context.Context) ([]*goose.MigrationResult, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return results, fmt.Errorf("migrate up: %w", err)
	}
	return results, nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) (*goose.MigrationResult, error) {
	result, err := m.provider.Down(ctx)
	if err != nil {
		return result, fmt.Errorf("migrate down: %w", err)
	}
	return result, nil
}

// To moves the schema up or down until version is the latest applied one.
func (m *Migrator) To(ctx context.Context, version int64) ([]*goose.MigrationResult, error) {
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	var results []*goose.MigrationResult
	switch {
	case version > current:
		results, err = m.provider.UpTo(ctx, version)
	case version < current:
		results, err = m.provider.DownTo(ctx, version)
	default:
		return nil, nil
	}
	if err != nil {
		return results, fmt.Errorf("migrate to %d: %w", version, err)
	}
	return results, nil
}

func (m *Migrator) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	return m.provider.Status(ctx)
}

func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

// ParseVersion accepts the 14 digit timestamp that prefixes migration files.
func ParseVersion(raw string) (int64, error) {
	if len(raw) != len(versionLayout) {
		return 0, fmt.Errorf("version %q must be %d digits (YYYYMMDDHHMMSS)", raw, len(versionLayout))
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("version %q must be %d digits (YYYYMMDDHHMMSS)", raw, len(versionLayout))
	}
	return v, nil
}
