package models

import "time"

// Cart is owned by at most one user. A nil UserID marks a guest cart that is
// only reachable through session state.
type Cart struct {
	ID        int64      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    *int64     `gorm:"column:user_id;uniqueIndex"`
	Items     []CartItem `gorm:"foreignKey:CartID;references:ID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// IsGuest reports whether the cart has no owner.
func (c Cart) IsGuest() bool {
	return c.UserID == nil
}
