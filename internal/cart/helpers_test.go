package cart

import (
	"testing"

	"gorm.io/gorm"

	"github.com/angelmondragon/trailpack-backend/pkg/db"
	"github.com/angelmondragon/trailpack-backend/pkg/db/dbtest"
	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
)

type fixture struct {
	client   *db.Client
	repo     *GormRepository
	resolver *Resolver
	productA models.Product
	productB models.Product
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	resolver, err := NewResolver(repo)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return fixture{
		client:   client,
		repo:     repo,
		resolver: resolver,
		productA: dbtest.SeedProduct(t, client.DB(), "Trail Backpack 35L", 8999),
		productB: dbtest.SeedProduct(t, client.DB(), "Headlamp 300lm", 1999),
	}
}

func itemsOf(t *testing.T, conn *gorm.DB, cartID int64) map[int64]int {
	t.Helper()
	var rows []models.CartItem
	if err := conn.Where("cart_id = ?", cartID).Find(&rows).Error; err != nil {
		t.Fatalf("list items: %v", err)
	}
	out := make(map[int64]int, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row.Quantity
	}
	return out
}

func countCarts(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := conn.Model(&models.Cart{}).Count(&count).Error; err != nil {
		t.Fatalf("count carts: %v", err)
	}
	return count
}
