package transport

import (
	"net/http"
	"testing"

	"plant-market/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSubscriptionHarness(svc *stubSubscriptionService) *routeHarness {
	return newRouteHarness(func(r chi.Router, auth func(http.Handler) http.Handler) {
		NewSubscriptionHandler(svc, false, zap.NewNop()).RegisterRoutes(r, auth)
	})
}

func TestSubscriptionHandler_PlansArePublic(t *testing.T) {
	svc := &stubSubscriptionService{plans: []*domain.Plan{}}
	h := newSubscriptionHarness(svc)

	w := h.do(t, nil, http.MethodGet, "/api/subscriptions/plans", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"plans":[]}`, w.Body.String())
}

func TestSubscriptionHandler_Subscribe(t *testing.T) {
	planID := uuid.New()
	svc := &stubSubscriptionService{sub: &domain.Subscription{ID: uuid.New(), PlanID: planID, Status: domain.SubscriptionActive}}
	h := newSubscriptionHarness(svc)
	buyer := actorWithRole(domain.RoleUser)

	assert.Equal(t, http.StatusUnauthorized, h.do(t, nil, http.MethodPost, "/api/subscriptions/subscribe", map[string]string{"plan_id": planID.String()}).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, buyer, http.MethodPost, "/api/subscriptions/subscribe", map[string]string{"plan_id": "gold"}).Code)
	assert.Empty(t, svc.calls)

	w := h.do(t, buyer, http.MethodPost, "/api/subscriptions/subscribe", map[string]string{"plan_id": planID.String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, planID, svc.gotPlanID)
	assert.Equal(t, buyer.ID, svc.gotActor.ID)

	svc.err = &domain.ValidationError{Field: "plan_id", Message: "already subscribed to this plan"}
	assert.Equal(t, http.StatusBadRequest, h.do(t, buyer, http.MethodPost, "/api/subscriptions/subscribe", map[string]string{"plan_id": planID.String()}).Code)
}

func TestSubscriptionHandler_CurrentWithoutSubscriptionIsNotFound(t *testing.T) {
	h := newSubscriptionHarness(&stubSubscriptionService{err: &domain.NotFoundError{Resource: "subscription"}})

	assert.Equal(t, http.StatusNotFound, h.do(t, actorWithRole(domain.RoleUser), http.MethodGet, "/api/subscriptions/current", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, actorWithRole(domain.RoleVIP), http.MethodPost, "/api/subscriptions/cancel", nil).Code)
}

func TestSubscriptionHandler_PlanAdministrationRequiresAdmin(t *testing.T) {
	svc := &stubSubscriptionService{}
	h := newSubscriptionHarness(svc)
	body := map[string]interface{}{"name": "gold", "price": "19.99", "image_limit": 50}

	assert.Equal(t, http.StatusForbidden, h.do(t, actorWithRole(domain.RoleVIP), http.MethodPost, "/api/subscriptions/plans", body).Code)
	assert.Equal(t, http.StatusForbidden, h.do(t, actorWithRole(domain.RoleUser), http.MethodGet, "/api/subscriptions/stats", nil).Code)
	assert.Empty(t, svc.calls)

	w := h.do(t, actorWithRole(domain.RoleAdmin), http.MethodPost, "/api/subscriptions/plans", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "gold", svc.gotPlan.Name)
	assert.True(t, decimal.RequireFromString("19.99").Equal(svc.gotPlan.Price))

	assert.Equal(t, http.StatusOK, h.do(t, actorWithRole(domain.RoleAdmin), http.MethodGet, "/api/subscriptions/stats", nil).Code)
}
