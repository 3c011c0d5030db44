package models

import "time"

// User represents a shopper account, password based or linked to an OAuth identity.
type User struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Email         *string   `gorm:"column:email;uniqueIndex"`
	PasswordHash  string    `gorm:"column:password_hash;not null"`
	FirstName     *string   `gorm:"column:first_name"`
	LastName      *string   `gorm:"column:last_name"`
	OAuthProvider *string   `gorm:"column:oauth_provider"`
	OAuthID       *string   `gorm:"column:oauth_id"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
