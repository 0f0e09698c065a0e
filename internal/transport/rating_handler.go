package transport

import (
	"net/http"

	"plant-market/internal/middleware"
	"plant-market/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RateProductRequest is a score out of five with an optional review
type RateProductRequest struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Review string `json:"review" validate:"max=2000"`
}

// RatingHandler serves product ratings
type RatingHandler struct {
	ratingService service.RatingService
	exposeDetail  bool
	logger        *zap.Logger
}

// NewRatingHandler creates a new RatingHandler
func NewRatingHandler(ratingService service.RatingService, exposeDetail bool, logger *zap.Logger) *RatingHandler {
	return &RatingHandler{
		ratingService: ratingService,
		exposeDetail:  exposeDetail,
		logger:        logger,
	}
}

// RegisterRoutes registers all rating routes
func (h *RatingHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/ratings", func(r chi.Router) {
		r.Get("/products/{productID}", h.ListForProduct)
		r.Get("/products/{productID}/stats", h.Stats)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)

			r.Get("/products/{productID}/mine", h.Mine)
			r.Post("/products/{productID}", h.Rate)
			r.Put("/{ratingID}", h.Update)
			r.Delete("/{ratingID}", h.Delete)
		})
	})
}

// ListForProduct returns every rating of a product
func (h *RatingHandler) ListForProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	ratings, err := h.ratingService.ListForProduct(r.Context(), productID)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to list ratings", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"ratings": ratings})
}

// Stats returns the average and per-star counts of a product's ratings
func (h *RatingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	stats, err := h.ratingService.Stats(r.Context(), productID)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to get rating stats", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, stats)
}

// Mine returns the caller's rating of a product; rating is null if there is none
func (h *RatingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	rating, err := h.ratingService.Mine(r.Context(), actor, productID)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to get rating", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"rating": rating})
}

// Rate creates or replaces the caller's rating of a product
func (h *RatingHandler) Rate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	var req RateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	rating, err := h.ratingService.Rate(r.Context(), actor, productID, req.Rating, req.Review)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to rate product", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, rating)
}

// Update changes a rating owned by the caller
func (h *RatingHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	ratingID, ok := pathID(w, r, "ratingID")
	if !ok {
		return
	}

	var req RateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	rating, err := h.ratingService.Update(r.Context(), actor, ratingID, req.Rating, req.Review)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to update rating", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, rating)
}

// Delete removes a rating owned by the caller
func (h *RatingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	ratingID, ok := pathID(w, r, "ratingID")
	if !ok {
		return
	}

	if err := h.ratingService.Delete(r.Context(), actor, ratingID); err != nil {
		respondServiceError(w, h.logger, "Failed to delete rating", err, h.exposeDetail)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
