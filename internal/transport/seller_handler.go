package transport

import (
	"net/http"

	"plant-market/internal/domain"
	"plant-market/internal/middleware"
	"plant-market/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ApplySellerRequest opens a seller application
type ApplySellerRequest struct {
	BusinessName string `json:"business_name" validate:"required,max=200"`
}

// SellerStatusRequest sets a seller's approval state
type SellerStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved suspended"`
}

// SellerHandler serves seller onboarding
type SellerHandler struct {
	sellerService service.SellerService
	exposeDetail  bool
	logger        *zap.Logger
}

// NewSellerHandler creates a new SellerHandler
func NewSellerHandler(sellerService service.SellerService, exposeDetail bool, logger *zap.Logger) *SellerHandler {
	return &SellerHandler{
		sellerService: sellerService,
		exposeDetail:  exposeDetail,
		logger:        logger,
	}
}

// RegisterRoutes registers all seller routes
func (h *SellerHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/sellers", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Post("/", h.Apply)
		r.Get("/me", h.GetMine)
		r.With(middleware.RequireAdmin(h.logger)).Put("/{sellerID}/status", h.UpdateStatus)
	})
}

// Apply handles a seller application from the caller
func (h *SellerHandler) Apply(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}

	var req ApplySellerRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	seller, err := h.sellerService.Apply(r.Context(), actor, req.BusinessName)
	if err != nil {
		respondServiceError(w, h.logger, "Seller application failed", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, seller)
}

// GetMine returns the caller's seller profile, whatever its status
func (h *SellerHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}

	seller, err := h.sellerService.GetMine(r.Context(), actor)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to get seller profile", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, seller)
}

// UpdateStatus handles seller approval and suspension
func (h *SellerHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := pathID(w, r, "sellerID")
	if !ok {
		return
	}

	var req SellerStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	seller, err := h.sellerService.UpdateStatus(r.Context(), sellerID, domain.SellerStatus(req.Status))
	if err != nil {
		respondServiceError(w, h.logger, "Failed to update seller status", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, seller)
}
