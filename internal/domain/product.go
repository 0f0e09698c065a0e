package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a listing owned by a seller
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	SellerID    uuid.UUID       `json:"seller_id" db:"seller_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Category    string          `json:"category" db:"category"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Stock       int             `json:"stock" db:"stock"`
	ImageURL    string          `json:"image_url" db:"image_url"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// ProductUpdate carries the fields a seller may change on a product.
// Nil fields are left untouched.
type ProductUpdate struct {
	Name        *string
	Description *string
	Category    *string
	Price       *decimal.Decimal
	Stock       *int
	ImageURL    *string
}

// Empty reports whether no field is set
func (u ProductUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Category == nil &&
		u.Price == nil && u.Stock == nil && u.ImageURL == nil
}

// ProductFilter narrows catalog listings
type ProductFilter struct {
	Search   string
	Category string
	SellerID *uuid.UUID
	Page     int
	PageSize int
}

// Category summarizes the products listed under one category name
type Category struct {
	Name         string `json:"name"`
	ProductCount int    `json:"product_count"`
	InStockCount int    `json:"in_stock_count"`
}
