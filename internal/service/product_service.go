package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plant-market/internal/domain"
	"plant-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductService manages the catalog
type ProductService interface {
	Create(ctx context.Context, actor domain.Actor, product *domain.Product) (*domain.Product, error)
	Update(ctx context.Context, actor domain.Actor, id uuid.UUID, update domain.ProductUpdate) (*domain.Product, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error)
	Categories(ctx context.Context) ([]*domain.Category, error)
}

type productService struct {
	productRepo  repository.ProductRepository
	sellerRepo   repository.SellerRepository
	categoryRepo repository.CategoryRepository
	logger       *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	productRepo repository.ProductRepository,
	sellerRepo repository.SellerRepository,
	categoryRepo repository.CategoryRepository,
	logger *zap.Logger,
) ProductService {
	return &productService{
		productRepo:  productRepo,
		sellerRepo:   sellerRepo,
		categoryRepo: categoryRepo,
		logger:       logger,
	}
}

// Create lists a new product under the acting seller
func (s *productService) Create(ctx context.Context, actor domain.Actor, product *domain.Product) (*domain.Product, error) {
	seller, err := s.approvedSeller(ctx, actor)
	if err != nil {
		return nil, err
	}

	if product.Price.IsNegative() {
		return nil, &domain.ValidationError{Field: "price", Message: "price must not be negative"}
	}
	if product.Stock < 0 {
		return nil, &domain.ValidationError{Field: "stock", Message: "stock must not be negative"}
	}

	now := time.Now().UTC()
	product.ID = uuid.New()
	product.SellerID = seller.ID
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("seller_id", seller.ID.String()),
	)

	return product, nil
}

// Update applies the allow-listed fields of update to a product the actor owns
func (s *productService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, update domain.ProductUpdate) (*domain.Product, error) {
	if update.Price != nil && update.Price.IsNegative() {
		return nil, &domain.ValidationError{Field: "price", Message: "price must not be negative"}
	}
	if update.Stock != nil && *update.Stock < 0 {
		return nil, &domain.ValidationError{Field: "stock", Message: "stock must not be negative"}
	}

	if err := s.authorizeOwner(ctx, actor, id, false); err != nil {
		return nil, err
	}

	product, err := s.productRepo.Update(ctx, id, update)
	if err != nil {
		return nil, s.mapError(err, id)
	}

	return product, nil
}

// Delete removes a product; sellers may delete their own, admins any
func (s *productService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if err := s.authorizeOwner(ctx, actor, id, true); err != nil {
		return err
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		return s.mapError(err, id)
	}

	s.logger.Info("Product deleted",
		zap.String("product_id", id.String()),
		zap.String("actor_id", actor.ID.String()),
	)

	return nil
}

func (s *productService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapError(err, id)
	}
	return product, nil
}

func (s *productService) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	return s.productRepo.List(ctx, filter)
}

func (s *productService) Categories(ctx context.Context) ([]*domain.Category, error) {
	return s.categoryRepo.List(ctx)
}

func (s *productService) approvedSeller(ctx context.Context, actor domain.Actor) (*domain.Seller, error) {
	seller, err := s.sellerRepo.FindByUserID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrSellerNotFound) {
			return nil, &domain.AuthorizationError{Action: "seller profile required"}
		}
		return nil, fmt.Errorf("failed to find seller: %w", err)
	}

	if seller.Status != domain.SellerApproved {
		return nil, &domain.AuthorizationError{Action: "seller is not approved"}
	}

	return seller, nil
}

func (s *productService) authorizeOwner(ctx context.Context, actor domain.Actor, id uuid.UUID, adminAllowed bool) error {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return s.mapError(err, id)
	}

	if adminAllowed && actor.IsAdmin() {
		return nil
	}

	seller, err := s.approvedSeller(ctx, actor)
	if err != nil {
		return err
	}

	if product.SellerID != seller.ID {
		return &domain.AuthorizationError{Action: "product belongs to another seller"}
	}

	return nil
}

func (s *productService) mapError(err error, id uuid.UUID) error {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return &domain.NotFoundError{Resource: "product", ID: id.String()}
	case errors.Is(err, repository.ErrProductInUse):
		return &domain.ValidationError{Field: "product", Message: "product has existing orders"}
	}
	return err
}
