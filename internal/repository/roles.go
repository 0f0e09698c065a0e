package repository

import (
	"context"
	"database/sql"
	"fmt"

	"plant-market/internal/domain"

	"github.com/google/uuid"
)

// promoteRole moves a user holding a base role (user or VIP) to role.
// Admins and sellers keep their role.
func promoteRole(ctx context.Context, tx *sql.Tx, userID uuid.UUID, role string) error {
	query := `UPDATE users SET role = $2 WHERE id = $1 AND role IN ($3, $4)`

	if _, err := tx.ExecContext(ctx, query, userID, role, domain.RoleUser, domain.RoleVIP); err != nil {
		return fmt.Errorf("failed to promote user role: %w", err)
	}
	return nil
}

// demoteRole drops a user currently holding from back to VIP while they
// still have an active paid subscription, otherwise to user
func demoteRole(ctx context.Context, tx *sql.Tx, userID uuid.UUID, from string) error {
	query := `
		UPDATE users
		SET role = CASE WHEN EXISTS (
				SELECT 1
				FROM user_subscriptions us
				JOIN subscription_plans sp ON sp.id = us.plan_id
				WHERE us.user_id = users.id AND us.status = $3 AND sp.price > 0
			) THEN $4 ELSE $5 END
		WHERE id = $1 AND role = $2
	`

	_, err := tx.ExecContext(ctx, query, userID, from, domain.SubscriptionActive, domain.RoleVIP, domain.RoleUser)
	if err != nil {
		return fmt.Errorf("failed to demote user role: %w", err)
	}
	return nil
}
