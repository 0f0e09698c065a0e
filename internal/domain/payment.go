package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the settlement state of a payment
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// Payment is the 1:1 payment record of an order
type Payment struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OrderID   uuid.UUID       `json:"order_id" db:"order_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Method    string          `json:"method" db:"method"`
	Status    PaymentStatus   `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// SellerPayment is a payment joined with the buyer of its order
type SellerPayment struct {
	Payment
	UserID uuid.UUID `json:"user_id"`
}
