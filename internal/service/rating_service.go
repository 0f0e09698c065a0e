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

// RatingService manages product ratings and reviews
type RatingService interface {
	ListForProduct(ctx context.Context, productID uuid.UUID) ([]*domain.Rating, error)
	Stats(ctx context.Context, productID uuid.UUID) (*domain.RatingStats, error)
	// Mine returns the actor's rating of a product, or nil if they have none
	Mine(ctx context.Context, actor domain.Actor, productID uuid.UUID) (*domain.Rating, error)
	Rate(ctx context.Context, actor domain.Actor, productID uuid.UUID, score int, review string) (*domain.Rating, error)
	Update(ctx context.Context, actor domain.Actor, ratingID uuid.UUID, score int, review string) (*domain.Rating, error)
	Delete(ctx context.Context, actor domain.Actor, ratingID uuid.UUID) error
}

type ratingService struct {
	ratingRepo  repository.RatingRepository
	productRepo repository.ProductRepository
	logger      *zap.Logger
}

// NewRatingService creates a new instance of RatingService
func NewRatingService(
	ratingRepo repository.RatingRepository,
	productRepo repository.ProductRepository,
	logger *zap.Logger,
) RatingService {
	return &ratingService{
		ratingRepo:  ratingRepo,
		productRepo: productRepo,
		logger:      logger,
	}
}

func (s *ratingService) ListForProduct(ctx context.Context, productID uuid.UUID) ([]*domain.Rating, error) {
	if err := s.requireProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.ratingRepo.ListByProduct(ctx, productID)
}

func (s *ratingService) Stats(ctx context.Context, productID uuid.UUID) (*domain.RatingStats, error) {
	if err := s.requireProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.ratingRepo.Stats(ctx, productID)
}

func (s *ratingService) Mine(ctx context.Context, actor domain.Actor, productID uuid.UUID) (*domain.Rating, error) {
	rating, err := s.ratingRepo.FindByUserAndProduct(ctx, actor.ID, productID)
	if err != nil {
		if errors.Is(err, repository.ErrRatingNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find rating: %w", err)
	}
	return rating, nil
}

// Rate records the actor's rating of a product. Rating the same product
// again replaces the earlier score and review.
func (s *ratingService) Rate(ctx context.Context, actor domain.Actor, productID uuid.UUID, score int, review string) (*domain.Rating, error) {
	if err := domain.ValidateRatingScore(score); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rating, err := s.ratingRepo.Upsert(ctx, &domain.Rating{
		ID:        uuid.New(),
		ProductID: productID,
		UserID:    actor.ID,
		Score:     score,
		Review:    strings.TrimSpace(review),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, &domain.NotFoundError{Resource: "product", ID: productID.String()}
		}
		return nil, err
	}

	s.logger.Info("Product rated",
		zap.String("product_id", productID.String()),
		zap.String("user_id", actor.ID.String()),
		zap.Int("rating", score),
	)

	return rating, nil
}

func (s *ratingService) Update(ctx context.Context, actor domain.Actor, ratingID uuid.UUID, score int, review string) (*domain.Rating, error) {
	if err := domain.ValidateRatingScore(score); err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(ctx, actor, ratingID); err != nil {
		return nil, err
	}

	rating, err := s.ratingRepo.Update(ctx, ratingID, score, strings.TrimSpace(review))
	if err != nil {
		return nil, s.mapError(err, ratingID)
	}
	return rating, nil
}

func (s *ratingService) Delete(ctx context.Context, actor domain.Actor, ratingID uuid.UUID) error {
	if err := s.authorizeOwner(ctx, actor, ratingID); err != nil {
		return err
	}

	if err := s.ratingRepo.Delete(ctx, ratingID); err != nil {
		return s.mapError(err, ratingID)
	}

	s.logger.Info("Rating deleted",
		zap.String("rating_id", ratingID.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	return nil
}

// authorizeOwner lets the rating's author or an admin change it
func (s *ratingService) authorizeOwner(ctx context.Context, actor domain.Actor, ratingID uuid.UUID) error {
	rating, err := s.ratingRepo.FindByID(ctx, ratingID)
	if err != nil {
		return s.mapError(err, ratingID)
	}

	if rating.UserID != actor.ID && !actor.IsAdmin() {
		return &domain.AuthorizationError{Action: "rating belongs to another user"}
	}
	return nil
}

func (s *ratingService) requireProduct(ctx context.Context, productID uuid.UUID) error {
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return &domain.NotFoundError{Resource: "product", ID: productID.String()}
		}
		return fmt.Errorf("failed to find product: %w", err)
	}
	return nil
}

func (s *ratingService) mapError(err error, id uuid.UUID) error {
	if errors.Is(err, repository.ErrRatingNotFound) {
		return &domain.NotFoundError{Resource: "rating", ID: id.String()}
	}
	return err
}
