package users

import (
	"strings"
	"time"

	"github.com/angelmondragon/trailpack-backend/pkg/db/models"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID            int64     `json:"id"`
	Email         *string   `json:"email"`
	FirstName     *string   `json:"first_name"`
	LastName      *string   `json:"last_name"`
	OAuthProvider *string   `json:"oauth_provider,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email         string
	PasswordHash  string
	FirstName     *string
	LastName      *string
	OAuthProvider *string
	OAuthID       *string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		OAuthProvider: u.OAuthProvider,
		CreatedAt:     u.CreatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	email := NormalizeEmail(c.Email)
	return &models.User{
		Email:         &email,
		PasswordHash:  c.PasswordHash,
		FirstName:     trimmed(c.FirstName),
		LastName:      trimmed(c.LastName),
		OAuthProvider: c.OAuthProvider,
		OAuthID:       c.OAuthID,
	}
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
