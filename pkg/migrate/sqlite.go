package migrate

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

//go:embed sqlite/schema.sql
var sqliteSchema string

//go:embed sqlite/seed.sql
var sqliteSeed string

// ApplySQLite creates the schema on a sqlite database. The Goose migrations
// stay Postgres-only; this mirrors them for local runs and tests.
func ApplySQLite(ctx context.Context, conn *gorm.DB, seed bool) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	db := conn.WithContext(ctx)
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	for _, stmt := range splitStatements(sqliteSchema) {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	if !seed {
		return nil
	}

	var count int64
	if err := db.Table("products").Count(&count).Error; err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, stmt := range splitStatements(sqliteSeed) {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("seed products: %w", err)
		}
	}
	return nil
}

func splitStatements(script string) []string {
	parts := strings.Split(script, ";")
	stmts := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			stmts = append(stmts, trimmed)
		}
	}
	return stmts
}
