// Package dbtest opens throwaway sqlite databases carrying the full schema.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/trailpack-backend/pkg/db"
	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
	"github.com/angelmondragon/trailpack-backend/pkg/enums"
	"github.com/angelmondragon/trailpack-backend/pkg/migrate"
)

var nameReplacer = strings.NewReplacer("/", "_", " ", "_", "#", "_")

// Open returns a client over a private in-memory database named after the test.
func Open(t *testing.T) *db.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", nameReplacer.Replace(t.Name()))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate.ApplySQLite(context.Background(), conn, false); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db.Wrap(conn)
}

// SeedProduct inserts a catalog product with the given price.
func SeedProduct(t *testing.T, conn *gorm.DB, name string, priceCents int64) models.Product {
	t.Helper()
	product := models.Product{
		Name:         name,
		PriceCents:   priceCents,
		CategorySlug: enums.ProductCategoryAccessories,
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	return product
}

// SeedUser inserts a password user with the given email.
func SeedUser(t *testing.T, conn *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{Email: &email, PasswordHash: "x"}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return user
}
