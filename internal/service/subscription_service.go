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

// SubscriptionService manages subscription plans. Holding an active paid
// plan grants the VIP role.
type SubscriptionService interface {
	ListPlans(ctx context.Context) ([]*domain.Plan, error)
	CreatePlan(ctx context.Context, plan *domain.Plan) (*domain.Plan, error)
	PlanStats(ctx context.Context) ([]*domain.PlanStats, error)
	// Subscribe moves the actor onto a plan. An active subscription to a
	// different plan is canceled first.
	Subscribe(ctx context.Context, actor domain.Actor, planID uuid.UUID) (*domain.Subscription, error)
	Cancel(ctx context.Context, actor domain.Actor) error
	Current(ctx context.Context, actor domain.Actor) (*domain.Subscription, error)
	History(ctx context.Context, actor domain.Actor) ([]*domain.Subscription, error)
}

type subscriptionService struct {
	subscriptionRepo repository.SubscriptionRepository
	logger           *zap.Logger
	now              func() time.Time
}

// NewSubscriptionService creates a new instance of SubscriptionService
func NewSubscriptionService(subscriptionRepo repository.SubscriptionRepository, logger *zap.Logger) SubscriptionService {
	return &subscriptionService{
		subscriptionRepo: subscriptionRepo,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *subscriptionService) ListPlans(ctx context.Context) ([]*domain.Plan, error) {
	return s.subscriptionRepo.ListPlans(ctx, true)
}

func (s *subscriptionService) CreatePlan(ctx context.Context, plan *domain.Plan) (*domain.Plan, error) {
	plan.Name = strings.TrimSpace(plan.Name)
	if plan.Name == "" {
		return nil, &domain.ValidationError{Field: "name", Message: "plan name is required"}
	}
	if plan.Price.IsNegative() {
		return nil, &domain.ValidationError{Field: "price", Message: "price must not be negative"}
	}
	if plan.ImageLimit < 0 {
		return nil, &domain.ValidationError{Field: "image_limit", Message: "image limit must not be negative"}
	}

	now := s.now()
	plan.ID = uuid.New()
	plan.IsActive = true
	plan.CreatedAt = now
	plan.UpdatedAt = now

	if err := s.subscriptionRepo.CreatePlan(ctx, plan); err != nil {
		if errors.Is(err, repository.ErrPlanAlreadyExists) {
			return nil, &domain.ValidationError{Field: "name", Message: "plan name already exists"}
		}
		return nil, err
	}

	s.logger.Info("Subscription plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("name", plan.Name),
		zap.String("price", plan.Price.StringFixed(2)),
	)

	return plan, nil
}

func (s *subscriptionService) PlanStats(ctx context.Context) ([]*domain.PlanStats, error) {
	return s.subscriptionRepo.PlanStats(ctx)
}

func (s *subscriptionService) Subscribe(ctx context.Context, actor domain.Actor, planID uuid.UUID) (*domain.Subscription, error) {
	plan, err := s.subscriptionRepo.FindPlan(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			return nil, &domain.NotFoundError{Resource: "plan", ID: planID.String()}
		}
		return nil, fmt.Errorf("failed to find plan: %w", err)
	}
	if !plan.IsActive {
		return nil, &domain.NotFoundError{Resource: "plan", ID: planID.String()}
	}

	sub, err := s.subscriptionRepo.Subscribe(ctx, actor.ID, plan, s.now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadySubscribed):
			return nil, &domain.ValidationError{Field: "plan_id", Message: "already subscribed to this plan"}
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, &domain.NotFoundError{Resource: "user", ID: actor.ID.String()}
		}
		return nil, err
	}

	s.logger.Info("User subscribed",
		zap.String("user_id", actor.ID.String()),
		zap.String("plan", plan.Name),
		zap.Bool("vip", plan.Paid()),
	)

	return sub, nil
}

func (s *subscriptionService) Cancel(ctx context.Context, actor domain.Actor) error {
	if err := s.subscriptionRepo.Cancel(ctx, actor.ID); err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) || errors.Is(err, repository.ErrUserNotFound) {
			return &domain.NotFoundError{Resource: "subscription"}
		}
		return err
	}

	s.logger.Info("Subscription canceled", zap.String("user_id", actor.ID.String()))
	return nil
}

func (s *subscriptionService) Current(ctx context.Context, actor domain.Actor) (*domain.Subscription, error) {
	sub, err := s.subscriptionRepo.Current(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return nil, &domain.NotFoundError{Resource: "subscription"}
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

func (s *subscriptionService) History(ctx context.Context, actor domain.Actor) ([]*domain.Subscription, error) {
	return s.subscriptionRepo.History(ctx, actor.ID)
}
