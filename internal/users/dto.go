package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noor-academy/lessonledger/pkg/db/models"
)

// UserDTO is the transport shape of a ledger account holder.
type UserDTO struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
// ID is optional so the gateway can keep its own identifiers.
type CreateUserDTO struct {
	ID          uuid.UUID
	Email       string
	DisplayName string
	IsActive    *bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	isActive := true
	if c.IsActive != nil {
		isActive = *c.IsActive
	}
	return &models.User{
		ID:          c.ID,
		Email:       NormalizeEmail(c.Email),
		DisplayName: strings.TrimSpace(c.DisplayName),
		IsActive:    isActive,
	}
}

// NormalizeEmail is the canonical stored form; lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
