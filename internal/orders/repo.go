package orders

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
	"github.com/angelmondragon/trailpack-backend/pkg/enums"
)

// ItemLine is an order item joined with the product it was bought as.
type ItemLine struct {
	ID         int64  `gorm:"column:id"`
	ProductID  *int64 `gorm:"column:product_id"`
	Name       string `gorm:"column:name"`
	Quantity   int    `gorm:"column:quantity"`
	PriceCents int64  `gorm:"column:price_cents"`
}

// LineTotal returns the frozen price times quantity.
func (l ItemLine) LineTotal() int64 {
	return l.PriceCents * int64(l.Quantity)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	if order == nil {
		return errors.New("order required")
	}
	return r.db.WithContext(ctx).Omit("Items").Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) ListByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindByID(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOwned(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByGuestToken(ctx context.Context, token string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("guest_token = ? AND user_id IS NULL", token).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListItemLines(ctx context.Context, orderID int64) ([]ItemLine, error) {
	var rows []ItemLine
	err := r.db.WithContext(ctx).
		Table("order_items AS oi").
		Select("oi.id, oi.product_id, COALESCE(p.name, ?) AS name, oi.quantity, oi.price_cents", DeletedProductName).
		Joins("LEFT JOIN products p ON p.id = oi.product_id").
		Where("oi.order_id = ?", orderID).
		Order("oi.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateStatus(ctx context.Context, update StatusUpdate) (int64, error) {
	values := map[string]any{
		"status":     update.To,
		"updated_at": time.Now().UTC(),
	}
	if update.PaidAt != nil {
		values["paid_at"] = *update.PaidAt
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND user_id = ? AND status = ?", update.OrderID, update.UserID, update.From).
		Updates(values)
	return res.RowsAffected, res.Error
}

func (r *repository) Claim(ctx context.Context, orderID, userID int64, token string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND guest_token = ? AND user_id IS NULL AND status IN ?", orderID, token, enums.ClaimableOrderStatuses).
		Updates(map[string]any{
			"user_id":     userID,
			"guest_token": gorm.Expr("NULL"),
			"updated_at":  time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) MarkPaid(ctx context.Context, target PayableTarget, paidAt time.Time) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ?", enums.OrderStatusPending)
	switch {
	case target.UserID != nil:
		query = query.Where("user_id = ?", *target.UserID)
	case target.GuestToken != nil:
		query = query.Where("guest_token = ? AND user_id IS NULL", *target.GuestToken)
	default:
		return 0, errors.New("payable target requires a user or guest token")
	}
	if target.OrderID != nil {
		query = query.Where("id = ?", *target.OrderID)
	}
	res := query.Updates(map[string]any{
		"status":     enums.OrderStatusPaid,
		"paid_at":    paidAt,
		"updated_at": time.Now().UTC(),
	})
	return res.RowsAffected, res.Error
}
