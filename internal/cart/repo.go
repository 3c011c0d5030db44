package cart

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
)

// Line is a cart item joined with the live product row.
type Line struct {
	ID         int64   `gorm:"column:id"`
	ProductID  int64   `gorm:"column:product_id"`
	Name       string  `gorm:"column:name"`
	PriceCents int64   `gorm:"column:price_cents"`
	Quantity   int     `gorm:"column:quantity"`
	ImageURL   *string `gorm:"column:image_url"`
}

// LineTotal returns price times quantity in minor units.
func (l Line) LineTotal() int64 {
	return l.PriceCents * int64(l.Quantity)
}

// GormRepository persists carts and cart items.
type GormRepository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *GormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &GormRepository{db: tx}
}

// FindByUser returns the cart owned by the user.
func (r *GormRepository) FindByUser(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindGuest returns the cart only when it exists and has no owner.
func (r *GormRepository) FindGuest(ctx context.Context, cartID int64) (*models.Cart, error) {
	var cart models.Cart
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id IS NULL", cartID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// CreateForUserIfAbsent inserts the user's cart, leaving an existing one alone.
func (r *GormRepository) CreateForUserIfAbsent(ctx context.Context, userID int64) error {
	owner := userID
	cart := models.Cart{UserID: &owner}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&cart).Error
}

// CreateGuest inserts a cart without an owner.
func (r *GormRepository) CreateGuest(ctx context.Context) (*models.Cart, error) {
	cart := models.Cart{}
	if err := r.db.WithContext(ctx).Create(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// DeleteCart removes the cart row.
func (r *GormRepository) DeleteCart(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).Where("id = ?", cartID).Delete(&models.Cart{}).Error
}

// ListItems returns the raw items of a cart in insertion order.
func (r *GormRepository) ListItems(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	var rows []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListLines returns the items joined with current product data, newest first.
func (r *GormRepository) ListLines(ctx context.Context, cartID int64) ([]Line, error) {
	var rows []Line
	err := r.db.WithContext(ctx).
		Table("cart_items AS ci").
		Select("ci.id, ci.product_id, p.name, p.price_cents, ci.quantity, p.image_url").
		Joins("JOIN products p ON p.id = ci.product_id").
		Where("ci.cart_id = ?", cartID).
		Order("ci.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ErrQuantityLimit reports that a capped upsert would push a line past its limit.
var ErrQuantityLimit = errors.New("cart item quantity limit exceeded")

// UpsertItem adds quantity to the line for the product, creating it when absent.
func (r *GormRepository) UpsertItem(ctx context.Context, cartID, productID int64, quantity int) (*models.CartItem, error) {
	if _, err := r.upsert(ctx, cartID, productID, quantity, clause.Where{}); err != nil {
		return nil, err
	}
	return r.findByProduct(ctx, cartID, productID)
}

// UpsertItemCapped behaves like UpsertItem but leaves the line untouched and
// returns ErrQuantityLimit when the summed quantity would exceed limit.
func (r *GormRepository) UpsertItemCapped(ctx context.Context, cartID, productID int64, quantity, limit int) (*models.CartItem, error) {
	rows, err := r.upsert(ctx, cartID, productID, quantity, clause.Where{Exprs: []clause.Expression{
		gorm.Expr("cart_items.quantity + excluded.quantity <= ?", limit),
	}})
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrQuantityLimit
	}
	return r.findByProduct(ctx, cartID, productID)
}

func (r *GormRepository) upsert(ctx context.Context, cartID, productID int64, quantity int, guard clause.Where) (int64, error) {
	item := models.CartItem{CartID: cartID, ProductID: productID, Quantity: quantity}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("cart_items.quantity + excluded.quantity"),
				"updated_at": gorm.Expr("excluded.updated_at"),
			}),
			Where: guard,
		}).
		Create(&item)
	return res.RowsAffected, res.Error
}

func (r *GormRepository) findByProduct(ctx context.Context, cartID, productID int64) (*models.CartItem, error) {
	var stored models.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// FindItem loads an item only if it belongs to the cart.
func (r *GormRepository) FindItem(ctx context.Context, cartID, itemID int64) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).Where("id = ? AND cart_id = ?", itemID, cartID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// SetItemQuantity overwrites the quantity and reports the affected row count.
func (r *GormRepository) SetItemQuantity(ctx context.Context, cartID, itemID int64, quantity int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Update("quantity", quantity)
	return res.RowsAffected, res.Error
}

// DeleteItem removes one item and reports the affected row count.
func (r *GormRepository) DeleteItem(ctx context.Context, cartID, itemID int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// DeleteItems empties the cart.
func (r *GormRepository) DeleteItems(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

// ProductExists reports whether the catalog has the product.
func (r *GormRepository) ProductExists(ctx context.Context, productID int64) (bool, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Select("id").Where("id = ?", productID).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
