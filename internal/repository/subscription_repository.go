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
	ErrPlanNotFound         = errors.New("subscription plan not found")
	ErrPlanAlreadyExists    = errors.New("subscription plan with this name already exists")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrAlreadySubscribed    = errors.New("user is already subscribed to this plan")
)

const planColumns = `id, name, price, image_limit, description, is_active, created_at, updated_at`

const subscriptionSelect = `
	SELECT us.id, us.user_id, us.plan_id, sp.name, sp.price, sp.image_limit, us.images_used,
		us.status, us.current_period_start, us.current_period_end, us.created_at, us.updated_at
	FROM user_subscriptions us
	JOIN subscription_plans sp ON sp.id = us.plan_id
`

// SubscriptionRepository defines the interface for plan and subscription data access
type SubscriptionRepository interface {
	CreatePlan(ctx context.Context, plan *domain.Plan) error
	FindPlan(ctx context.Context, id uuid.UUID) (*domain.Plan, error)
	ListPlans(ctx context.Context, activeOnly bool) ([]*domain.Plan, error)
	PlanStats(ctx context.Context) ([]*domain.PlanStats, error)

	// Subscribe moves the user onto plan, canceling any other active
	// subscription, and sets the VIP role to match the plan's price
	Subscribe(ctx context.Context, userID uuid.UUID, plan *domain.Plan, now time.Time) (*domain.Subscription, error)
	// Cancel ends the user's active subscription and withdraws VIP
	Cancel(ctx context.Context, userID uuid.UUID) error
	Current(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)
	History(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error)
}

type subscriptionRepository struct {
	db *sql.DB
}

// NewSubscriptionRepository creates a new instance of SubscriptionRepository
func NewSubscriptionRepository(db *sql.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) CreatePlan(ctx context.Context, plan *domain.Plan) error {
	query := `
		INSERT INTO subscription_plans (id, name, price, image_limit, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		plan.ID,
		plan.Name,
		plan.Price,
		plan.ImageLimit,
		plan.Description,
		plan.IsActive,
		plan.CreatedAt,
		plan.UpdatedAt,
	)

	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return ErrPlanAlreadyExists
		case pgCheckViolation:
			return &domain.ValidationError{Field: "plan", Message: "price and image limit must not be negative"}
		}
		return fmt.Errorf("failed to create plan: %w", err)
	}

	return nil
}

func (r *subscriptionRepository) FindPlan(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE id = $1`

	plan, err := scanPlan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to find plan: %w", err)
	}

	return plan, nil
}

// ListPlans returns plans cheapest first
func (r *subscriptionRepository) ListPlans(ctx context.Context, activeOnly bool) ([]*domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY price ASC, name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := []*domain.Plan{}
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}

	return plans, nil
}

func (r *subscriptionRepository) PlanStats(ctx context.Context) ([]*domain.PlanStats, error) {
	query := `
		SELECT sp.id, sp.name, sp.price,
			COUNT(us.id),
			COUNT(us.id) FILTER (WHERE us.status = $1),
			COUNT(us.id) FILTER (WHERE us.status = $2)
		FROM subscription_plans sp
		LEFT JOIN user_subscriptions us ON us.plan_id = sp.id
		GROUP BY sp.id, sp.name, sp.price
		ORDER BY sp.price ASC
	`

	rows, err := r.db.QueryContext(ctx, query, domain.SubscriptionActive, domain.SubscriptionCanceled)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan stats: %w", err)
	}
	defer rows.Close()

	stats := []*domain.PlanStats{}
	for rows.Next() {
		s := &domain.PlanStats{}
		if err := rows.Scan(
			&s.PlanID,
			&s.PlanName,
			&s.PlanPrice,
			&s.TotalSubscriptions,
			&s.ActiveSubscriptions,
			&s.CanceledSubscriptions,
		); err != nil {
			return nil, fmt.Errorf("failed to scan plan stats: %w", err)
		}
		stats = append(stats, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plan stats: %w", err)
	}

	return stats, nil
}

func (r *subscriptionRepository) Subscribe(ctx context.Context, userID uuid.UUID, plan *domain.Plan, now time.Time) (*domain.Subscription, error) {
	sub := &domain.Subscription{
		ID:                 uuid.New(),
		UserID:             userID,
		PlanID:             plan.ID,
		PlanName:           plan.Name,
		Price:              plan.Price,
		ImageLimit:         plan.ImageLimit,
		Status:             domain.SubscriptionActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, domain.SubscriptionPeriod, 0),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := withTx(ctx, r.db, "subscribe", func(tx *sql.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		var (
			activeID     uuid.UUID
			activePlanID uuid.UUID
		)
		err := tx.QueryRowContext(ctx,
			`SELECT id, plan_id FROM user_subscriptions WHERE user_id = $1 AND status = $2`,
			userID, domain.SubscriptionActive,
		).Scan(&activeID, &activePlanID)

		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to load active subscription: %w", err)
		case activePlanID == plan.ID:
			return ErrAlreadySubscribed
		default:
			if _, err := tx.ExecContext(ctx,
				`UPDATE user_subscriptions SET status = $2, updated_at = $3 WHERE id = $1`,
				activeID, domain.SubscriptionCanceled, now,
			); err != nil {
				return fmt.Errorf("failed to cancel previous subscription: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_subscriptions
				(id, user_id, plan_id, status, images_used, current_period_start, current_period_end, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8)
		`,
			sub.ID,
			sub.UserID,
			sub.PlanID,
			sub.Status,
			sub.CurrentPeriodStart,
			sub.CurrentPeriodEnd,
			sub.CreatedAt,
			sub.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}

		if plan.Paid() {
			return promoteRole(ctx, tx, userID, domain.RoleVIP)
		}
		return demoteRole(ctx, tx, userID, domain.RoleVIP)
	})
	if err != nil {
		for _, sentinel := range []error{ErrUserNotFound, ErrAlreadySubscribed} {
			if errors.Is(err, sentinel) {
				return nil, sentinel
			}
		}
		return nil, err
	}

	return sub, nil
}

func (r *subscriptionRepository) Cancel(ctx context.Context, userID uuid.UUID) error {
	err := withTx(ctx, r.db, "cancel subscription", func(tx *sql.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE user_subscriptions SET status = $3, updated_at = $4 WHERE user_id = $1 AND status = $2`,
			userID, domain.SubscriptionActive, domain.SubscriptionCanceled, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to cancel subscription: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return ErrSubscriptionNotFound
		}

		return demoteRole(ctx, tx, userID, domain.RoleVIP)
	})
	if err != nil {
		for _, sentinel := range []error{ErrUserNotFound, ErrSubscriptionNotFound} {
			if errors.Is(err, sentinel) {
				return sentinel
			}
		}
		return err
	}

	return nil
}

func (r *subscriptionRepository) Current(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	query := subscriptionSelect + ` WHERE us.user_id = $1 AND us.status = $2`

	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, userID, domain.SubscriptionActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}

	return sub, nil
}

// History returns every subscription the user has held, newest first
func (r *subscriptionRepository) History(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	query := subscriptionSelect + ` WHERE us.user_id = $1 ORDER BY us.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []*domain.Subscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subs, nil
}

// lockUser serializes subscription changes for one user
func lockUser(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to lock user: %w", err)
	}
	return nil
}

func scanPlan(row rowScanner) (*domain.Plan, error) {
	plan := &domain.Plan{}
	err := row.Scan(
		&plan.ID,
		&plan.Name,
		&plan.Price,
		&plan.ImageLimit,
		&plan.Description,
		&plan.IsActive,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	sub := &domain.Subscription{}
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.PlanID,
		&sub.PlanName,
		&sub.Price,
		&sub.ImageLimit,
		&sub.ImagesUsed,
		&sub.Status,
		&sub.CurrentPeriodStart,
		&sub.CurrentPeriodEnd,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
