package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rating bounds, in stars
const (
	MinRatingScore = 1
	MaxRatingScore = 5
)

// Rating is one user's score and review of a product. A user holds at most
// one rating per product.
type Rating struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Username  string    `json:"username,omitempty" db:"username"`
	Score     int       `json:"rating" db:"rating"`
	Review    string    `json:"review" db:"review"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ValidateRatingScore rejects scores outside one to five stars
func ValidateRatingScore(score int) error {
	if score < MinRatingScore || score > MaxRatingScore {
		return &ValidationError{Field: "rating", Message: "rating must be between 1 and 5"}
	}
	return nil
}

// RatingStats summarizes the ratings of a product
type RatingStats struct {
	ProductID     uuid.UUID       `json:"product_id"`
	TotalRatings  int             `json:"total_ratings"`
	AverageRating decimal.Decimal `json:"average_rating"`
	// Distribution maps a star value to the number of ratings with it
	Distribution map[int]int `json:"rating_distribution"`
}

// NewRatingStats returns empty stats with every star value present
func NewRatingStats(productID uuid.UUID) *RatingStats {
	stats := &RatingStats{
		ProductID:     productID,
		AverageRating: decimal.Zero,
		Distribution:  make(map[int]int, MaxRatingScore),
	}
	for score := MinRatingScore; score <= MaxRatingScore; score++ {
		stats.Distribution[score] = 0
	}
	return stats
}
