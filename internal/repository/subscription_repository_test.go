package repository

import (
	"context"
	"testing"
	"time"

	"plant-market/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectUserLock(mock sqlmock.Sqlmock, userID uuid.UUID) {
	mock.ExpectQuery(q("SELECT id FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(userID.String()))
}

func expectActiveSubscription(mock sqlmock.Sqlmock, userID uuid.UUID, rows *sqlmock.Rows) {
	mock.ExpectQuery(q("SELECT id, plan_id FROM user_subscriptions WHERE user_id = $1 AND status = $2")).
		WithArgs(userID, domain.SubscriptionActive).
		WillReturnRows(rows)
}

func testPlan(price string) *domain.Plan {
	return &domain.Plan{ID: uuid.New(), Name: "plan-" + price, Price: decimal.RequireFromString(price), IsActive: true}
}

func TestSubscriptionRepository_UpgradeToPaidPlanGrantsVIP(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	userID, previousID := uuid.New(), uuid.New()
	plan := testPlan("9.99")
	now := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectUserLock(mock, userID)
	expectActiveSubscription(mock, userID, sqlmock.NewRows([]string{"id", "plan_id"}).
		AddRow(previousID.String(), uuid.New().String()))
	mock.ExpectExec(q("UPDATE user_subscriptions SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs(previousID, domain.SubscriptionCanceled, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO user_subscriptions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE users SET role = $2 WHERE id = $1 AND role IN ($3, $4)")).
		WithArgs(userID, domain.RoleVIP, domain.RoleUser, domain.RoleVIP).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sub, err := NewSubscriptionRepository(db).Subscribe(context.Background(), userID, plan, now)

	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.Equal(t, plan.ID, sub.PlanID)
	assert.Equal(t, now.AddDate(0, 1, 0), sub.CurrentPeriodEnd)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepository_FreePlanWithdrawsVIP(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	userID := uuid.New()

	mock.ExpectBegin()
	expectUserLock(mock, userID)
	expectActiveSubscription(mock, userID, sqlmock.NewRows([]string{"id", "plan_id"}))
	mock.ExpectExec(q("INSERT INTO user_subscriptions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("WHERE id = $1 AND role = $2")).
		WithArgs(userID, domain.RoleVIP, domain.SubscriptionActive, domain.RoleVIP, domain.RoleUser).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err = NewSubscriptionRepository(db).Subscribe(context.Background(), userID, testPlan("0"), time.Now().UTC())

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepository_SamePlanIsRejectedAndRolledBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	userID := uuid.New()
	plan := testPlan("9.99")

	mock.ExpectBegin()
	expectUserLock(mock, userID)
	expectActiveSubscription(mock, userID, sqlmock.NewRows([]string{"id", "plan_id"}).
		AddRow(uuid.New().String(), plan.ID.String()))
	mock.ExpectRollback()

	_, err = NewSubscriptionRepository(db).Subscribe(context.Background(), userID, plan, time.Now().UTC())

	assert.ErrorIs(t, err, ErrAlreadySubscribed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepository_RoleFailureUndoesSubscription(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	userID := uuid.New()

	mock.ExpectBegin()
	expectUserLock(mock, userID)
	expectActiveSubscription(mock, userID, sqlmock.NewRows([]string{"id", "plan_id"}))
	mock.ExpectExec(q("INSERT INTO user_subscriptions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE users SET role")).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err = NewSubscriptionRepository(db).Subscribe(context.Background(), userID, testPlan("9.99"), time.Now().UTC())

	var txErr *domain.TransactionError
	assert.ErrorAs(t, err, &txErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepository_CancelWithdrawsVIP(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	userID := uuid.New()

	mock.ExpectBegin()
	expectUserLock(mock, userID)
	mock.ExpectExec(q("UPDATE user_subscriptions SET status = $3")).
		WithArgs(userID, domain.SubscriptionActive, domain.SubscriptionCanceled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("WHERE id = $1 AND role = $2")).
		WithArgs(userID, domain.RoleVIP, domain.SubscriptionActive, domain.RoleVIP, domain.RoleUser).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewSubscriptionRepository(db).Cancel(context.Background(), userID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionRepository_CancelWithoutActiveSubscription(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	userID := uuid.New()

	mock.ExpectBegin()
	expectUserLock(mock, userID)
	mock.ExpectExec(q("UPDATE user_subscriptions SET status = $3")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = NewSubscriptionRepository(db).Cancel(context.Background(), userID)

	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
