package cart

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
)

// Repository defines the persistence surface shared by the cart components.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUser(ctx context.Context, userID int64) (*models.Cart, error)
	FindGuest(ctx context.Context, cartID int64) (*models.Cart, error)
	CreateForUserIfAbsent(ctx context.Context, userID int64) error
	CreateGuest(ctx context.Context) (*models.Cart, error)
	DeleteCart(ctx context.Context, cartID int64) error
	ListItems(ctx context.Context, cartID int64) ([]models.CartItem, error)
	ListLines(ctx context.Context, cartID int64) ([]Line, error)
	UpsertItem(ctx context.Context, cartID, productID int64, quantity int) (*models.CartItem, error)
	UpsertItemCapped(ctx context.Context, cartID, productID int64, quantity, limit int) (*models.CartItem, error)
	FindItem(ctx context.Context, cartID, itemID int64) (*models.CartItem, error)
	SetItemQuantity(ctx context.Context, cartID, itemID int64, quantity int) (int64, error)
	DeleteItem(ctx context.Context, cartID, itemID int64) (int64, error)
	DeleteItems(ctx context.Context, cartID int64) error
	ProductExists(ctx context.Context, productID int64) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
