package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"plant-market/internal/domain"
	"plant-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SellerService manages seller onboarding and approval
type SellerService interface {
	Apply(ctx context.Context, actor domain.Actor, businessName string) (*domain.Seller, error)
	GetMine(ctx context.Context, actor domain.Actor) (*domain.Seller, error)
	UpdateStatus(ctx context.Context, sellerID uuid.UUID, status domain.SellerStatus) (*domain.Seller, error)
	// ResolveSellerID returns the approved seller profile id owned by actor, if any
	ResolveSellerID(ctx context.Context, actor domain.Actor) (uuid.UUID, bool, error)
}

type sellerService struct {
	sellerRepo repository.SellerRepository
	logger     *zap.Logger
}

// NewSellerService creates a new instance of SellerService
func NewSellerService(sellerRepo repository.SellerRepository, logger *zap.Logger) SellerService {
	return &sellerService{
		sellerRepo: sellerRepo,
		logger:     logger,
	}
}

// Apply opens a pending seller profile for the acting user
func (s *sellerService) Apply(ctx context.Context, actor domain.Actor, businessName string) (*domain.Seller, error) {
	businessName = strings.TrimSpace(businessName)
	if businessName == "" {
		return nil, &domain.ValidationError{Field: "business_name", Message: "business name is required"}
	}

	now := time.Now().UTC()
	seller := &domain.Seller{
		ID:           uuid.New(),
		UserID:       actor.ID,
		BusinessName: businessName,
		Status:       domain.SellerPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.sellerRepo.Create(ctx, seller); err != nil {
		if errors.Is(err, repository.ErrSellerAlreadyExists) {
			return nil, &domain.ValidationError{Field: "user", Message: "seller profile already exists"}
		}
		return nil, fmt.Errorf("failed to create seller: %w", err)
	}

	s.logger.Info("Seller application received",
		zap.String("seller_id", seller.ID.String()),
		zap.String("user_id", actor.ID.String()),
	)

	return seller, nil
}

// GetMine returns the acting user's seller profile
func (s *sellerService) GetMine(ctx context.Context, actor domain.Actor) (*domain.Seller, error) {
	seller, err := s.sellerRepo.FindByUserID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrSellerNotFound) {
			return nil, &domain.NotFoundError{Resource: "seller"}
		}
		return nil, fmt.Errorf("failed to get seller: %w", err)
	}
	return seller, nil
}

// UpdateStatus approves or suspends a seller. Approval grants the seller
// role; any other status withdraws it.
func (s *sellerService) UpdateStatus(ctx context.Context, sellerID uuid.UUID, status domain.SellerStatus) (*domain.Seller, error) {
	if !status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Message: "invalid status value"}
	}

	seller, err := s.sellerRepo.UpdateStatus(ctx, sellerID, status)
	if err != nil {
		if errors.Is(err, repository.ErrSellerNotFound) {
			return nil, &domain.NotFoundError{Resource: "seller", ID: sellerID.String()}
		}
		return nil, fmt.Errorf("failed to update seller status: %w", err)
	}

	s.logger.Info("Seller status updated",
		zap.String("seller_id", seller.ID.String()),
		zap.String("status", string(status)),
	)

	return seller, nil
}

func (s *sellerService) ResolveSellerID(ctx context.Context, actor domain.Actor) (uuid.UUID, bool, error) {
	seller, err := s.sellerRepo.FindByUserID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrSellerNotFound) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("failed to resolve seller: %w", err)
	}
	if !seller.Status.Active() {
		return uuid.Nil, false, nil
	}
	return seller.ID, true, nil
}
