package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/trailpack-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestMigrationsContainSchemaInvariants(t *testing.T) {
	cases := map[string][]string{
		"create_users_table": {
			"CREATE TABLE IF NOT EXISTS users",
			"email TEXT UNIQUE",
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_users_oauth_identity",
			"WHERE oauth_provider IS NOT NULL AND oauth_id IS NOT NULL",
		},
		"create_products_table": {
			"CREATE TABLE IF NOT EXISTS products",
			"price_cents BIGINT NOT NULL CHECK (price_cents >= 0)",
		},
		"create_carts_tables": {
			"user_id BIGINT UNIQUE REFERENCES users(id)",
			"cart_id BIGINT NOT NULL REFERENCES carts(id) ON DELETE CASCADE",
			"CHECK (quantity > 0)",
			"CONSTRAINT cart_items_cart_id_product_id_key UNIQUE (cart_id, product_id)",
		},
		"create_orders_tables": {
			"CREATE TABLE IF NOT EXISTS orders",
			"CHECK (status IN ('pending', 'paid', 'shipped', 'delivered', 'cancelled'))",
			"total_cents BIGINT NOT NULL CHECK (total_cents >= 0)",
			"order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE",
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_guest_token",
		},
		"create_outbox_events_table": {
			"CREATE TABLE IF NOT EXISTS outbox_events",
			"WHERE published_at IS NULL",
		},
		"create_outbox_dlq_table": {
			"CREATE TABLE IF NOT EXISTS outbox_dlq",
			"CHECK (error_reason IN ('max_attempts', 'non_retryable'))",
		},
	}

	for suffix, checks := range cases {
		content := readMigration(t, suffix)
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", suffix, sub)
			}
		}
	}
}

func TestSeedProductsCoversEveryCategory(t *testing.T) {
	content := readMigration(t, "seed_products")
	for _, category := range []string{"'backpacks'", "'jackets'", "'boots'", "'accessories'"} {
		if got := strings.Count(content, category); got != 4 {
			t.Errorf("expected 4 products in %s, got %d", category, got)
		}
	}
}

func TestEmbeddedMigrationsMatchDirectory(t *testing.T) {
	if err := migrate.Validate(migrate.Embedded()); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(embedded) != len(onDisk) || len(embedded) == 0 {
		t.Fatalf("embedded %d migrations, directory has %d", len(embedded), len(onDisk))
	}
}

func TestNewMigrationFileWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.FixedZone("CET", 3600))

	path, err := migrate.NewMigrationFile(dir, "Add Wishlist-Table!", now)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if got := filepath.Base(path); got != "20260314082653_add_wishlist_table.sql" {
		t.Fatalf("unexpected filename %s", got)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "-- rollback add_wishlist_table") {
		t.Fatalf("template missing rollback stub:\n%s", body)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestNewMigrationFileStaysAfterNewestVersion(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	first, err := migrate.NewMigrationFile(dir, "add reviews", now)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := migrate.NewMigrationFile(dir, "add review votes", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if filepath.Base(first) != "20260314090000_add_reviews.sql" {
		t.Fatalf("unexpected first file %s", first)
	}
	if filepath.Base(second) != "20260314090001_add_review_votes.sql" {
		t.Fatalf("expected second file to follow the first, got %s", second)
	}
}

func TestNewMigrationFileRejectsEmptyName(t *testing.T) {
	if _, err := migrate.NewMigrationFile(t.TempDir(), " -- ", time.Now()); err == nil {
		t.Fatal("expected an error for a name with no usable characters")
	}
}

func TestValidateDirRejectsBadMigrations(t *testing.T) {
	cases := map[string]map[string]string{
		"bad name": {"init.sql": "-- +goose Up\n-- +goose Down\n"},
		"no down":  {"20260101000000_a.sql": "-- +goose Up\nSELECT 1;\n"},
		"no up":    {"20260101000000_a.sql": "-- +goose Down\nSELECT 1;\n"},
		"down first": {
			"20260101000000_a.sql": "-- +goose Down\nSELECT 1;\n-- +goose Up\nSELECT 1;\n",
		},
		"duplicate version": {
			"20260101000000_a.sql": "-- +goose Up\n-- +goose Down\n",
			"20260101000000_b.sql": "-- +goose Up\n-- +goose Down\n",
		},
	}
	for name, files := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			for file, body := range files {
				if err := os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644); err != nil {
					t.Fatalf("write: %v", err)
				}
			}
			if err := migrate.ValidateDir(dir); err == nil {
				t.Fatal("expected validation to fail")
			}
		})
	}
}

func TestParseVersion(t *testing.T) {
	v, err := migrate.ParseVersion("20250105120300")
	if err != nil || v != 20250105120300 {
		t.Fatalf("expected 20250105120300, got %d (%v)", v, err)
	}
	for _, raw := range []string{"", "2025", "2025010512030x", "-0250105120300"} {
		if _, err := migrate.ParseVersion(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}
