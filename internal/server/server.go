package server

import (
	"fmt"
	"net/http"
	"time"

	"plant-market/internal/config"
	"plant-market/internal/database"
	"plant-market/internal/events"
	custommiddleware "plant-market/internal/middleware"
	"plant-market/internal/repository"
	"plant-market/internal/service"
	"plant-market/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config    *config.Config
	logger    *zap.Logger
	db        *database.Service
	redis     *redis.Client
	publisher events.Publisher
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *database.Service, redisClient *redis.Client, publisher events.Publisher) *Server {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	exposeDetail := !cfg.Server.IsProduction()

	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, !cfg.Server.IsProduction()))

	s := &Server{
		config:    cfg,
		logger:    logger,
		db:        db,
		redis:     redisClient,
		publisher: publisher,
	}

	router.Get("/health", s.health)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB())
	sellerRepo := repository.NewSellerRepository(db.DB())
	productRepo := repository.NewProductRepository(db.DB())
	categoryRepo := repository.NewCategoryRepository(db.DB())
	orderRepo := repository.NewOrderRepository(db.DB())
	ratingRepo := repository.NewRatingRepository(db.DB())
	subscriptionRepo := repository.NewSubscriptionRepository(db.DB())
	blogRepo := repository.NewBlogRepository(db.DB())
	blacklist := repository.NewTokenBlacklist(redisClient)

	// Initialize services
	userService := service.NewUserService(userRepo, blacklist, cfg.JWT.Secret, time.Duration(cfg.JWT.AccessExpiry)*time.Minute)
	sellerService := service.NewSellerService(sellerRepo, logger)
	productService := service.NewProductService(productRepo, sellerRepo, categoryRepo, logger)
	orderService := service.NewOrderService(orderRepo, sellerService, publisher, logger)
	ratingService := service.NewRatingService(ratingRepo, productRepo, logger)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, logger)
	blogService := service.NewBlogService(blogRepo, logger)

	limits := custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
	}
	addressLimits, userLimits := limits, limits
	addressLimits.KeyPrefix = "rate_limit:addr"
	userLimits.KeyPrefix = "rate_limit:user"

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, blacklist, logger)
	userRateLimit := custommiddleware.RateLimitMiddleware(redisClient, userLimits, logger)

	// authenticated routes get a per-user budget on top of the address budget
	authenticated := func(next http.Handler) http.Handler {
		return authMiddleware(userRateLimit(next))
	}

	router.Group(func(r chi.Router) {
		r.Use(custommiddleware.RateLimitMiddleware(redisClient, addressLimits, logger))

		transport.NewUserHandler(userService, exposeDetail, logger).RegisterRoutes(r, authenticated)
		transport.NewSellerHandler(sellerService, exposeDetail, logger).RegisterRoutes(r, authenticated)
		transport.NewProductHandler(productService, exposeDetail, logger).RegisterRoutes(r, authenticated)
		transport.NewOrderHandler(orderService, exposeDetail, logger).RegisterRoutes(r, authenticated)
		transport.NewRatingHandler(ratingService, exposeDetail, logger).RegisterRoutes(r, authenticated)
		transport.NewSubscriptionHandler(subscriptionService, exposeDetail, logger).RegisterRoutes(r, authenticated)
		transport.NewBlogHandler(blogService, exposeDetail, logger).RegisterRoutes(r, authenticated)
	})

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// health reports the database pool and redis; either being down is a 503
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK

	dbHealth := s.db.Health(r.Context())
	if dbHealth["status"] != "up" {
		status = http.StatusServiceUnavailable
	}

	redisHealth := map[string]string{"status": "up"}
	if err := s.redis.Ping(r.Context()).Err(); err != nil {
		redisHealth = map[string]string{"status": "down", "error": err.Error()}
		status = http.StatusServiceUnavailable
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
		s.logger.Warn("Health check failed",
			zap.Any("database", dbHealth),
			zap.Any("redis", redisHealth),
		)
	}

	if s.config.Server.IsProduction() {
		delete(dbHealth, "error")
		delete(redisHealth, "error")
	}

	custommiddleware.RespondWithJSON(w, status, map[string]interface{}{
		"status":   overall,
		"database": dbHealth,
		"redis":    redisHealth,
	})
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if err := s.publisher.Close(); err != nil {
		s.logger.Error("Failed to close event publisher", zap.Error(err))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
