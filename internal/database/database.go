package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"plant-market/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Service owns the process-wide connection pool. It is created once at
// startup, handed to repositories by constructor, and closed on shutdown.
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens the pool and verifies connectivity
func New(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Service, error) {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
	)

	return &Service{db: db, logger: logger}, nil
}

// Wrap adopts an already opened pool
func Wrap(db *sql.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// DB returns the underlying pool
func (s *Service) DB() *sql.DB {
	return s.db
}

// Health reports pool status
func (s *Service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		return stats
	}

	dbStats := s.db.Stats()
	stats["status"] = "up"
	stats["open_connections"] = fmt.Sprint(dbStats.OpenConnections)
	stats["in_use"] = fmt.Sprint(dbStats.InUse)
	stats["idle"] = fmt.Sprint(dbStats.Idle)
	stats["wait_count"] = fmt.Sprint(dbStats.WaitCount)
	stats["wait_duration"] = dbStats.WaitDuration.String()

	return stats
}

// Close releases every pooled connection
func (s *Service) Close() error {
	s.logger.Info("Closing database pool")
	return s.db.Close()
}
