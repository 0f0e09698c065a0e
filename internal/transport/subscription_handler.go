package transport

import (
	"net/http"

	"plant-market/internal/domain"
	"plant-market/internal/middleware"
	"plant-market/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SubscribeRequest picks the plan to move onto
type SubscribeRequest struct {
	PlanID string `json:"plan_id" validate:"required,uuid"`
}

// CreatePlanRequest defines a new subscription plan
type CreatePlanRequest struct {
	Name        string          `json:"name" validate:"required,max=100"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	ImageLimit  int             `json:"image_limit" validate:"gte=0"`
	Description string          `json:"description" validate:"max=2000"`
}

// SubscriptionHandler serves subscription plans
type SubscriptionHandler struct {
	subscriptionService service.SubscriptionService
	exposeDetail        bool
	logger              *zap.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(subscriptionService service.SubscriptionService, exposeDetail bool, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
		exposeDetail:        exposeDetail,
		logger:              logger,
	}
}

// RegisterRoutes registers all subscription routes
func (h *SubscriptionHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/subscriptions", func(r chi.Router) {
		r.Get("/plans", h.ListPlans)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)

			r.Get("/current", h.Current)
			r.Get("/history", h.History)
			r.Post("/subscribe", h.Subscribe)
			r.Post("/cancel", h.Cancel)

			r.With(middleware.RequireAdmin(h.logger)).Post("/plans", h.CreatePlan)
			r.With(middleware.RequireAdmin(h.logger)).Get("/stats", h.PlanStats)
		})
	})
}

// ListPlans returns the plans open for subscription
func (h *SubscriptionHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.subscriptionService.ListPlans(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "Failed to list plans", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"plans": plans})
}

// CreatePlan adds a subscription plan
func (h *SubscriptionHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	plan, err := h.subscriptionService.CreatePlan(r.Context(), &domain.Plan{
		Name:        req.Name,
		Price:       req.Price,
		ImageLimit:  req.ImageLimit,
		Description: req.Description,
	})
	if err != nil {
		respondServiceError(w, h.logger, "Failed to create plan", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, plan)
}

// PlanStats counts subscriptions per plan
func (h *SubscriptionHandler) PlanStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.subscriptionService.PlanStats(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "Failed to get plan stats", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"plans": stats})
}

// Subscribe moves the caller onto a plan. The role in the caller's token
// changes at the next login.
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}

	var req SubscribeRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	sub, err := h.subscriptionService.Subscribe(r.Context(), actor, uuid.MustParse(req.PlanID))
	if err != nil {
		respondServiceError(w, h.logger, "Subscription failed", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, sub)
}

// Cancel ends the caller's active subscription
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.subscriptionService.Cancel(r.Context(), actor); err != nil {
		respondServiceError(w, h.logger, "Failed to cancel subscription", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "subscription canceled"})
}

// Current returns the caller's active subscription
func (h *SubscriptionHandler) Current(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}

	sub, err := h.subscriptionService.Current(r.Context(), actor)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to get subscription", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, sub)
}

// History returns every subscription the caller has held
func (h *SubscriptionHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}

	subs, err := h.subscriptionService.History(r.Context(), actor)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to get subscription history", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"subscriptions": subs})
}
