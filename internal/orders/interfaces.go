package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
	"github.com/angelmondragon/trailpack-backend/pkg/enums"
)

// Repository defines persistence operations for the orders tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	ListByUser(ctx context.Context, userID int64) ([]models.Order, error)
	FindByID(ctx context.Context, orderID int64) (*models.Order, error)
	FindOwned(ctx context.Context, userID, orderID int64) (*models.Order, error)
	FindByGuestToken(ctx context.Context, token string) (*models.Order, error)
	ListItemLines(ctx context.Context, orderID int64) ([]ItemLine, error)
	UpdateStatus(ctx context.Context, update StatusUpdate) (int64, error)
	Claim(ctx context.Context, orderID, userID int64, token string) (int64, error)
	MarkPaid(ctx context.Context, target PayableTarget, paidAt time.Time) (int64, error)
}

// StatusUpdate is a compare-and-set status write scoped to the owner.
type StatusUpdate struct {
	OrderID int64
	UserID  int64
	From    enums.OrderStatus
	To      enums.OrderStatus
	PaidAt  *time.Time
}

// PayableTarget selects the single pending order a settlement may flip.
// Exactly one of UserID or GuestToken is set.
type PayableTarget struct {
	OrderID    *int64
	UserID     *int64
	GuestToken *string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
