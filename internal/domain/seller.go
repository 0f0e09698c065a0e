package domain

import (
	"time"

	"github.com/google/uuid"
)

// SellerStatus is the approval state of a seller profile
type SellerStatus string

const (
	SellerPending   SellerStatus = "pending"
	SellerApproved  SellerStatus = "approved"
	SellerSuspended SellerStatus = "suspended"
)

// Valid reports whether s is a known seller status
func (s SellerStatus) Valid() bool {
	switch s {
	case SellerPending, SellerApproved, SellerSuspended:
		return true
	}
	return false
}

// Active reports whether a profile in this status may sell
func (s SellerStatus) Active() bool {
	return s == SellerApproved
}

// Seller is the storefront profile attached to a user
type Seller struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	UserID       uuid.UUID    `json:"user_id" db:"user_id"`
	BusinessName string       `json:"business_name" db:"business_name"`
	Status       SellerStatus `json:"status" db:"status"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}
