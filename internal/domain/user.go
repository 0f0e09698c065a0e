package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role values carried in access tokens
const (
	RoleUser   = "user"
	RoleVIP    = "VIP"
	RoleAdmin  = "admin"
	RoleSeller = "seller"
)

// User represents a registered account
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Actor is the authenticated identity behind a request
type Actor struct {
	ID   uuid.UUID
	Role string
}

// IsAdmin reports whether the actor holds the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
