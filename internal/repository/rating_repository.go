package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"plant-market/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrRatingNotFound = errors.New("rating not found")

const ratingColumns = `id, product_id, user_id, rating, review, created_at, updated_at`

// RatingRepository defines the interface for product rating data access
type RatingRepository interface {
	// Upsert stores the user's rating of a product, replacing any earlier one
	Upsert(ctx context.Context, rating *domain.Rating) (*domain.Rating, error)
	Update(ctx context.Context, id uuid.UUID, score int, review string) (*domain.Rating, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Rating, error)
	FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*domain.Rating, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.Rating, error)
	Stats(ctx context.Context, productID uuid.UUID) (*domain.RatingStats, error)
}

type ratingRepository struct {
	db *sql.DB
}

// NewRatingRepository creates a new instance of RatingRepository
func NewRatingRepository(db *sql.DB) RatingRepository {
	return &ratingRepository{db: db}
}

func (r *ratingRepository) Upsert(ctx context.Context, rating *domain.Rating) (*domain.Rating, error) {
	query := `
		INSERT INTO ratings (id, product_id, user_id, rating, review, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET rating = EXCLUDED.rating, review = EXCLUDED.review, updated_at = EXCLUDED.updated_at
		RETURNING ` + ratingColumns

	saved, err := scanRating(r.db.QueryRowContext(
		ctx,
		query,
		rating.ID,
		rating.ProductID,
		rating.UserID,
		rating.Score,
		rating.Review,
		rating.CreatedAt,
	), nil)
	if err != nil {
		switch pgErrorCode(err) {
		case pgForeignKeyViolation:
			return nil, ErrProductNotFound
		case pgCheckViolation:
			return nil, &domain.ValidationError{Field: "rating", Message: "rating must be between 1 and 5"}
		}
		return nil, fmt.Errorf("failed to save rating: %w", err)
	}

	return saved, nil
}

func (r *ratingRepository) Update(ctx context.Context, id uuid.UUID, score int, review string) (*domain.Rating, error) {
	query := `
		UPDATE ratings
		SET rating = $2, review = $3, updated_at = $4
		WHERE id = $1
		RETURNING ` + ratingColumns

	rating, err := scanRating(r.db.QueryRowContext(ctx, query, id, score, review, time.Now().UTC()), nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingNotFound
		}
		return nil, fmt.Errorf("failed to update rating: %w", err)
	}

	return rating, nil
}

func (r *ratingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM ratings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rating: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRatingNotFound
	}

	return nil
}

func (r *ratingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE id = $1`
	return r.findOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *ratingRepository) FindByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*domain.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE user_id = $1 AND product_id = $2`
	return r.findOne(r.db.QueryRowContext(ctx, query, userID, productID))
}

// ListByProduct returns a product's ratings newest first, with the rater's name
func (r *ratingRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.Rating, error) {
	query := `
		SELECT r.id, r.product_id, r.user_id, r.rating, r.review, r.created_at, r.updated_at, u.name
		FROM ratings r
		JOIN users u ON u.id = r.user_id
		WHERE r.product_id = $1
		ORDER BY r.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	defer rows.Close()

	ratings := []*domain.Rating{}
	for rows.Next() {
		var username string
		rating, err := scanRating(rows, &username)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		rating.Username = username
		ratings = append(ratings, rating)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ratings: %w", err)
	}

	return ratings, nil
}

// Stats counts a product's ratings per star value and averages them to two places
func (r *ratingRepository) Stats(ctx context.Context, productID uuid.UUID) (*domain.RatingStats, error) {
	query := `
		SELECT rating, COUNT(*)
		FROM ratings
		WHERE product_id = $1
		GROUP BY rating
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rating stats: %w", err)
	}
	defer rows.Close()

	stats := domain.NewRatingStats(productID)
	sum := 0
	for rows.Next() {
		var score, count int
		if err := rows.Scan(&score, &count); err != nil {
			return nil, fmt.Errorf("failed to scan rating stats: %w", err)
		}
		stats.Distribution[score] = count
		stats.TotalRatings += count
		sum += score * count
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rating stats: %w", err)
	}

	if stats.TotalRatings > 0 {
		stats.AverageRating = decimal.NewFromInt(int64(sum)).
			DivRound(decimal.NewFromInt(int64(stats.TotalRatings)), 2)
	}

	return stats, nil
}

func (r *ratingRepository) findOne(row *sql.Row) (*domain.Rating, error) {
	rating, err := scanRating(row, nil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingNotFound
		}
		return nil, fmt.Errorf("failed to find rating: %w", err)
	}
	return rating, nil
}

// scanRating reads ratingColumns, followed by the rater's name when username is set
func scanRating(row rowScanner, username *string) (*domain.Rating, error) {
	rating := &domain.Rating{}
	dest := []interface{}{
		&rating.ID,
		&rating.ProductID,
		&rating.UserID,
		&rating.Score,
		&rating.Review,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	}
	if username != nil {
		dest = append(dest, username)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return rating, nil
}
