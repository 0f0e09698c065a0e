package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus is the state of a user's subscription
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// FreePlanName is the plan every user without a subscription is on
const FreePlanName = "free"

// SubscriptionPeriod is the length of one billing period
const SubscriptionPeriod = 1 // months

// Plan is a subscription offering
type Plan struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Price       decimal.Decimal `json:"price" db:"price"`
	ImageLimit  int             `json:"image_limit" db:"image_limit"`
	Description string          `json:"description" db:"description"`
	IsActive    bool            `json:"is_active" db:"is_active"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Paid reports whether subscribing to the plan grants the VIP role
func (p *Plan) Paid() bool {
	return p.Price.IsPositive()
}

// Subscription ties a user to a plan for a billing period
type Subscription struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	UserID             uuid.UUID          `json:"user_id" db:"user_id"`
	PlanID             uuid.UUID          `json:"plan_id" db:"plan_id"`
	PlanName           string             `json:"plan_name" db:"plan_name"`
	Price              decimal.Decimal    `json:"price" db:"price"`
	ImageLimit         int                `json:"image_limit" db:"image_limit"`
	ImagesUsed         int                `json:"images_used" db:"images_used"`
	Status             SubscriptionStatus `json:"status" db:"status"`
	CurrentPeriodStart time.Time          `json:"current_period_start" db:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end" db:"current_period_end"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// PlanStats counts subscriptions per plan for the admin dashboard
type PlanStats struct {
	PlanID                uuid.UUID       `json:"plan_id"`
	PlanName              string          `json:"plan_name"`
	PlanPrice             decimal.Decimal `json:"plan_price"`
	TotalSubscriptions    int             `json:"total_subscriptions"`
	ActiveSubscriptions   int             `json:"active_subscriptions"`
	CanceledSubscriptions int             `json:"canceled_subscriptions"`
}
