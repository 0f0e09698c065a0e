package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"plant-market/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrSellerNotFound      = errors.New("seller not found")
	ErrSellerAlreadyExists = errors.New("user already has a seller profile")
)

// SellerRepository defines the interface for seller profile data access
type SellerRepository interface {
	Create(ctx context.Context, seller *domain.Seller) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Seller, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Seller, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SellerStatus) (*domain.Seller, error)
}

type sellerRepository struct {
	db *sql.DB
}

// NewSellerRepository creates a new instance of SellerRepository
func NewSellerRepository(db *sql.DB) SellerRepository {
	return &sellerRepository{db: db}
}

const sellerColumns = `id, user_id, business_name, status, created_at, updated_at`

// Create inserts a seller profile; a user may hold at most one
func (r *sellerRepository) Create(ctx context.Context, seller *domain.Seller) error {
	query := `
		INSERT INTO sellers (id, user_id, business_name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		seller.ID,
		seller.UserID,
		seller.BusinessName,
		seller.Status,
		seller.CreatedAt,
		seller.UpdatedAt,
	)

	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return ErrSellerAlreadyExists
		}
		return fmt.Errorf("failed to create seller: %w", err)
	}

	return nil
}

// FindByID retrieves a seller profile by its own ID
func (r *sellerRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Seller, error) {
	query := `SELECT ` + sellerColumns + ` FROM sellers WHERE id = $1`
	return r.findOne(r.db.QueryRowContext(ctx, query, id))
}

// FindByUserID retrieves the seller profile owned by a user
func (r *sellerRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.Seller, error) {
	query := `SELECT ` + sellerColumns + ` FROM sellers WHERE user_id = $1`
	return r.findOne(r.db.QueryRowContext(ctx, query, userID))
}

// UpdateStatus sets the approval status of a seller profile and, in the same
// transaction, grants or withdraws the owner's seller role
func (r *sellerRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SellerStatus) (*domain.Seller, error) {
	query := `
		UPDATE sellers
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + sellerColumns

	var seller *domain.Seller
	err := withTx(ctx, r.db, "update seller status", func(tx *sql.Tx) error {
		var err error
		seller, err = r.findOne(tx.QueryRowContext(ctx, query, id, status, time.Now().UTC()))
		if err != nil {
			return err
		}

		if status.Active() {
			return promoteRole(ctx, tx, seller.UserID, domain.RoleSeller)
		}
		return demoteRole(ctx, tx, seller.UserID, domain.RoleSeller)
	})
	if err != nil {
		if errors.Is(err, ErrSellerNotFound) {
			return nil, ErrSellerNotFound
		}
		return nil, err
	}

	return seller, nil
}

func (r *sellerRepository) findOne(row *sql.Row) (*domain.Seller, error) {
	seller := &domain.Seller{}
	err := row.Scan(
		&seller.ID,
		&seller.UserID,
		&seller.BusinessName,
		&seller.Status,
		&seller.CreatedAt,
		&seller.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSellerNotFound
		}
		return nil, fmt.Errorf("failed to find seller: %w", err)
	}

	return seller, nil
}
