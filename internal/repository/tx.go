package repository

import (
	"context"
	"database/sql"
	"errors"

	"plant-market/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the repositories react to
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// withTx runs fn inside a single transaction. Any error from fn rolls back
// every write made since BEGIN; only a nil return commits.
func withTx(ctx context.Context, db *sql.DB, op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.TransactionError{Op: op, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return classifyTxError(op, err)
	}

	if err := tx.Commit(); err != nil {
		return &domain.TransactionError{Op: op, Err: err}
	}

	return nil
}

// classifyTxError keeps domain errors intact and turns storage failures
// into TransactionError
func classifyTxError(op string, err error) error {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
		stock      *domain.InsufficientStockError
		authz      *domain.AuthorizationError
		transition *domain.InvalidTransitionError
		txErr      *domain.TransactionError
	)

	switch {
	case errors.As(err, &validation),
		errors.As(err, &notFound),
		errors.As(err, &stock),
		errors.As(err, &authz),
		errors.As(err, &transition),
		errors.As(err, &txErr):
		return err
	}

	return &domain.TransactionError{Op: op, Err: err}
}

// pgErrorCode returns the SQLSTATE of err, or "" if err did not come from Postgres
func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
