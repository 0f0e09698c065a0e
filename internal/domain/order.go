package domain

import (
	"bytes"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every accepted status value in lifecycle order
var OrderStatuses = []OrderStatus{
	OrderPending,
	OrderProcessing,
	OrderShipped,
	OrderCompleted,
	OrderCancelled,
}

// forward advancement is one step at a time
var nextOrderStatus = map[OrderStatus]OrderStatus{
	OrderPending:    OrderProcessing,
	OrderProcessing: OrderShipped,
	OrderShipped:    OrderCompleted,
}

// ParseOrderStatus checks raw against the status allow-list
func ParseOrderStatus(raw string) (OrderStatus, error) {
	if raw == "" {
		return "", &ValidationError{Field: "status", Message: "status is required"}
	}
	s := OrderStatus(raw)
	if !s.Valid() {
		return "", &ValidationError{Field: "status", Message: "invalid status value"}
	}
	return s, nil
}

// Valid reports whether s is in the allow-list
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition may leave s
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// CanAdvanceTo reports whether to is the next forward step after s
func (s OrderStatus) CanAdvanceTo(to OrderStatus) bool {
	next, ok := nextOrderStatus[s]
	return ok && next == to
}

// Previous returns the status one forward step before s, or "" if none
func (s OrderStatus) Previous() OrderStatus {
	for from, to := range nextOrderStatus {
		if to == s {
			return from
		}
	}
	return ""
}

// CanCancel reports whether an order in s may still be cancelled
func (s OrderStatus) CanCancel() bool {
	return s.Valid() && !s.Terminal()
}

// Order is a customer purchase with its line items and payment
type Order struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	UserID          uuid.UUID       `json:"user_id" db:"user_id"`
	Total           decimal.Decimal `json:"total" db:"total"`
	ShippingAddress string          `json:"shipping_address" db:"shipping_address"`
	PaymentMethod   string          `json:"payment_method" db:"payment_method"`
	Status          OrderStatus     `json:"status" db:"status"`
	AdminNotes      string          `json:"admin_notes" db:"admin_notes"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	Items           []OrderItem     `json:"items,omitempty"`
	Payment         *Payment        `json:"payment,omitempty"`
}

// HasSeller reports whether any line item belongs to sellerID
func (o *Order) HasSeller(sellerID uuid.UUID) bool {
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			return true
		}
	}
	return false
}

// OrderItem is a product line with its unit price frozen at purchase time
type OrderItem struct {
	OrderID     uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID   uuid.UUID       `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name,omitempty" db:"name"`
	SellerID    uuid.UUID       `json:"seller_id" db:"seller_id"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"price"`
}

// Subtotal is UnitPrice × Quantity
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// LineRequest is one requested (product, quantity) pair
type LineRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

// MaxLineQuantity is the largest quantity of one product an order may hold.
// Stock is an INTEGER column.
const MaxLineQuantity = math.MaxInt32

// PlaceOrderInput is a validated order placement request
type PlaceOrderInput struct {
	UserID          uuid.UUID
	Items           []LineRequest
	ShippingAddress string
	PaymentMethod   string
}

// NormalizeLines merges repeated products and sorts lines by product id so
// that concurrent multi-item orders lock product rows in the same order.
func NormalizeLines(lines []LineRequest) ([]LineRequest, error) {
	if len(lines) == 0 {
		return nil, &ValidationError{Field: "items", Message: "at least one item is required"}
	}

	merged := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, &ValidationError{Field: "productId", Message: "product id is required"}
		}
		if line.Quantity <= 0 {
			return nil, &ValidationError{Field: "quantity", Message: "quantity must be a positive integer"}
		}
		if line.Quantity > MaxLineQuantity-merged[line.ProductID] {
			return nil, &ValidationError{Field: "quantity", Message: "quantity is too large"}
		}
		merged[line.ProductID] += line.Quantity
	}

	out := make([]LineRequest, 0, len(merged))
	for id, qty := range merged {
		out = append(out, LineRequest{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ProductID[:], out[j].ProductID[:]) < 0
	})
	return out, nil
}

// OrderFilter narrows admin listings
type OrderFilter struct {
	Status *OrderStatus
}

// OrderStats summarizes orders for the admin dashboard
type OrderStats struct {
	TotalOrders       int                 `json:"total_orders"`
	ByStatus          map[OrderStatus]int `json:"by_status"`
	Revenue           decimal.Decimal     `json:"revenue"`
	AverageOrderValue decimal.Decimal     `json:"average_order_value"`
}
