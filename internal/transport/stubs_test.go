package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"plant-market/internal/domain"
	"plant-market/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubOrderService struct {
	err error

	order    *domain.Order
	orders   []*domain.Order
	payments []*domain.SellerPayment
	stats    *domain.OrderStats

	gotActor   domain.Actor
	gotLines   []domain.LineRequest
	gotAddress string
	gotMethod  string
	gotStatus  string
	gotNotes   string
	gotFilter  domain.OrderFilter
	gotOrderID uuid.UUID
	calls      []string
}

func (s *stubOrderService) record(call string, actor domain.Actor, orderID uuid.UUID) {
	s.calls = append(s.calls, call)
	s.gotActor = actor
	s.gotOrderID = orderID
}

func (s *stubOrderService) PlaceOrder(ctx context.Context, actor domain.Actor, items []domain.LineRequest, shippingAddress, paymentMethod string) (*domain.Order, error) {
	s.record("place", actor, uuid.Nil)
	s.gotLines = items
	s.gotAddress = shippingAddress
	s.gotMethod = paymentMethod
	return s.order, s.err
}

func (s *stubOrderService) ListMyOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error) {
	s.record("list mine", actor, uuid.Nil)
	return s.orders, s.err
}

func (s *stubOrderService) GetMyOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error) {
	s.record("get mine", actor, orderID)
	return s.order, s.err
}

func (s *stubOrderService) CancelOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error) {
	s.record("cancel", actor, orderID)
	return s.order, s.err
}

func (s *stubOrderService) ListSellerOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error) {
	s.record("seller orders", actor, uuid.Nil)
	return s.orders, s.err
}

func (s *stubOrderService) ListSellerPayments(ctx context.Context, actor domain.Actor) ([]*domain.SellerPayment, error) {
	s.record("seller payments", actor, uuid.Nil)
	return s.payments, s.err
}

func (s *stubOrderService) ListAllOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	s.record("list all", domain.Actor{}, uuid.Nil)
	s.gotFilter = filter
	return s.orders, s.err
}

func (s *stubOrderService) Stats(ctx context.Context) (*domain.OrderStats, error) {
	s.record("stats", domain.Actor{}, uuid.Nil)
	return s.stats, s.err
}

func (s *stubOrderService) GetOrderDetails(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	s.record("details", domain.Actor{}, orderID)
	return s.order, s.err
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, actor domain.Actor, orderID uuid.UUID, rawStatus string) (*domain.Order, error) {
	s.record("status", actor, orderID)
	s.gotStatus = rawStatus
	return s.order, s.err
}

func (s *stubOrderService) UpdateNotes(ctx context.Context, orderID uuid.UUID, notes string) (*domain.Order, error) {
	s.record("notes", domain.Actor{}, orderID)
	s.gotNotes = notes
	return s.order, s.err
}

func (s *stubOrderService) AdminCancel(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error) {
	s.record("admin cancel", actor, orderID)
	return s.order, s.err
}

func (s *stubOrderService) DeleteOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) error {
	s.record("delete", actor, orderID)
	return s.err
}

type stubProductService struct {
	err      error
	product  *domain.Product
	products []*domain.Product
	total    int

	gotActor   domain.Actor
	gotProduct *domain.Product
	gotUpdate  domain.ProductUpdate
	gotFilter  domain.ProductFilter
	gotID      uuid.UUID
}

func (s *stubProductService) Create(ctx context.Context, actor domain.Actor, product *domain.Product) (*domain.Product, error) {
	s.gotActor = actor
	s.gotProduct = product
	return product, s.err
}

func (s *stubProductService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, update domain.ProductUpdate) (*domain.Product, error) {
	s.gotActor = actor
	s.gotID = id
	s.gotUpdate = update
	return s.product, s.err
}

func (s *stubProductService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	s.gotActor = actor
	s.gotID = id
	return s.err
}

func (s *stubProductService) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	s.gotID = id
	return s.product, s.err
}

func (s *stubProductService) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	s.gotFilter = filter
	return s.products, s.total, s.err
}

func (s *stubProductService) Categories(ctx context.Context) ([]*domain.Category, error) {
	return []*domain.Category{{Name: "succulents", ProductCount: 3, InStockCount: 2}}, s.err
}

type stubSellerService struct {
	err    error
	seller *domain.Seller

	gotBusinessName string
	gotStatus       domain.SellerStatus
	gotID           uuid.UUID
}

func (s *stubSellerService) Apply(ctx context.Context, actor domain.Actor, businessName string) (*domain.Seller, error) {
	s.gotBusinessName = businessName
	return s.seller, s.err
}

func (s *stubSellerService) GetMine(ctx context.Context, actor domain.Actor) (*domain.Seller, error) {
	return s.seller, s.err
}

func (s *stubSellerService) UpdateStatus(ctx context.Context, sellerID uuid.UUID, status domain.SellerStatus) (*domain.Seller, error) {
	s.gotID = sellerID
	s.gotStatus = status
	return s.seller, s.err
}

func (s *stubSellerService) ResolveSellerID(ctx context.Context, actor domain.Actor) (uuid.UUID, bool, error) {
	return uuid.Nil, false, s.err
}

type stubRatingService struct {
	err     error
	rating  *domain.Rating
	ratings []*domain.Rating
	stats   *domain.RatingStats

	gotActor  domain.Actor
	gotID     uuid.UUID
	gotScore  int
	gotReview string
}

func (s *stubRatingService) ListForProduct(ctx context.Context, productID uuid.UUID) ([]*domain.Rating, error) {
	s.gotID = productID
	return s.ratings, s.err
}

func (s *stubRatingService) Stats(ctx context.Context, productID uuid.UUID) (*domain.RatingStats, error) {
	s.gotID = productID
	return s.stats, s.err
}

func (s *stubRatingService) Mine(ctx context.Context, actor domain.Actor, productID uuid.UUID) (*domain.Rating, error) {
	s.gotActor = actor
	s.gotID = productID
	return s.rating, s.err
}

func (s *stubRatingService) Rate(ctx context.Context, actor domain.Actor, productID uuid.UUID, score int, review string) (*domain.Rating, error) {
	s.gotActor, s.gotID, s.gotScore, s.gotReview = actor, productID, score, review
	return s.rating, s.err
}

func (s *stubRatingService) Update(ctx context.Context, actor domain.Actor, ratingID uuid.UUID, score int, review string) (*domain.Rating, error) {
	s.gotActor, s.gotID, s.gotScore, s.gotReview = actor, ratingID, score, review
	return s.rating, s.err
}

func (s *stubRatingService) Delete(ctx context.Context, actor domain.Actor, ratingID uuid.UUID) error {
	s.gotActor, s.gotID = actor, ratingID
	return s.err
}

type stubSubscriptionService struct {
	err   error
	sub   *domain.Subscription
	plans []*domain.Plan

	gotActor  domain.Actor
	gotPlanID uuid.UUID
	gotPlan   *domain.Plan
	calls     []string
}

func (s *stubSubscriptionService) ListPlans(ctx context.Context) ([]*domain.Plan, error) {
	s.calls = append(s.calls, "plans")
	return s.plans, s.err
}

func (s *stubSubscriptionService) CreatePlan(ctx context.Context, plan *domain.Plan) (*domain.Plan, error) {
	s.calls = append(s.calls, "create plan")
	s.gotPlan = plan
	return plan, s.err
}

func (s *stubSubscriptionService) PlanStats(ctx context.Context) ([]*domain.PlanStats, error) {
	s.calls = append(s.calls, "stats")
	return []*domain.PlanStats{}, s.err
}

func (s *stubSubscriptionService) Subscribe(ctx context.Context, actor domain.Actor, planID uuid.UUID) (*domain.Subscription, error) {
	s.calls = append(s.calls, "subscribe")
	s.gotActor, s.gotPlanID = actor, planID
	return s.sub, s.err
}

func (s *stubSubscriptionService) Cancel(ctx context.Context, actor domain.Actor) error {
	s.calls = append(s.calls, "cancel")
	s.gotActor = actor
	return s.err
}

func (s *stubSubscriptionService) Current(ctx context.Context, actor domain.Actor) (*domain.Subscription, error) {
	s.calls = append(s.calls, "current")
	s.gotActor = actor
	return s.sub, s.err
}

func (s *stubSubscriptionService) History(ctx context.Context, actor domain.Actor) ([]*domain.Subscription, error) {
	s.calls = append(s.calls, "history")
	s.gotActor = actor
	return []*domain.Subscription{}, s.err
}

type stubBlogService struct {
	err  error
	blog *domain.Blog

	gotActor   domain.Actor
	gotRef     string
	gotFilter  domain.BlogFilter
	gotBlog    *domain.Blog
	gotComment string
}

func (s *stubBlogService) List(ctx context.Context, filter domain.BlogFilter) ([]*domain.Blog, error) {
	s.gotFilter = filter
	return []*domain.Blog{}, s.err
}

func (s *stubBlogService) Get(ctx context.Context, ref string) (*domain.Blog, error) {
	s.gotRef = ref
	return s.blog, s.err
}

func (s *stubBlogService) Create(ctx context.Context, actor domain.Actor, blog *domain.Blog) (*domain.Blog, error) {
	s.gotActor, s.gotBlog = actor, blog
	return blog, s.err
}

func (s *stubBlogService) ListComments(ctx context.Context, ref string) ([]*domain.Comment, error) {
	s.gotRef = ref
	return []*domain.Comment{}, s.err
}

func (s *stubBlogService) AddComment(ctx context.Context, actor domain.Actor, ref string, content string) (*domain.Comment, error) {
	s.gotActor, s.gotRef, s.gotComment = actor, ref, content
	return &domain.Comment{ID: uuid.New(), UserID: actor.ID, Content: content}, s.err
}

// routeHarness mounts handlers behind the real auth middleware
type routeHarness struct {
	router http.Handler
}

func newRouteHarness(register func(r chi.Router, auth func(http.Handler) http.Handler)) *routeHarness {
	r := chi.NewRouter()
	register(r, middleware.AuthMiddleware(testSecret, nil, zap.NewNop()))
	return &routeHarness{router: r}
}

func tokenFor(t *testing.T, actor domain.Actor) string {
	t.Helper()

	claims := jwt.MapClaims{
		"id":   actor.ID.String(),
		"role": actor.Role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (h *routeHarness) do(t *testing.T, actor *domain.Actor, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, *actor))
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()

	var response middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func actorWithRole(role string) *domain.Actor {
	return &domain.Actor{ID: uuid.New(), Role: role}
}
