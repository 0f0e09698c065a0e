package transport

import (
	"net/http"
	"strings"

	"plant-market/internal/domain"
	"plant-market/internal/middleware"
	"plant-market/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderLineRequest is one product line of a new order
type OrderLineRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// PlaceOrderRequest represents the order placement payload
type PlaceOrderRequest struct {
	Items           []OrderLineRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress string             `json:"shippingAddress" validate:"required,max=500"`
	PaymentMethod   string             `json:"paymentMethod" validate:"required,max=50"`
}

// OrderStatusRequest carries the target status of an admin update
type OrderStatusRequest struct {
	Status string `json:"status"`
}

// OrderNotesRequest accepts either spelling of the notes field
type OrderNotesRequest struct {
	AdminNotes      *string `json:"adminNotes" validate:"omitempty,max=2000"`
	AdminNotesSnake *string `json:"admin_notes" validate:"omitempty,max=2000"`
}

// OrderListResponse wraps a list of orders
type OrderListResponse struct {
	Orders []*domain.Order `json:"orders"`
	Count  int             `json:"count"`
}

// PaymentListResponse wraps a list of seller payments
type PaymentListResponse struct {
	Payments []*domain.SellerPayment `json:"payments"`
	Count    int                     `json:"count"`
}

// OrderHandler serves buyer, seller and admin order endpoints
type OrderHandler struct {
	orderService service.OrderService
	exposeDetail bool
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, exposeDetail bool, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		exposeDetail: exposeDetail,
		logger:       logger,
	}
}

// RegisterRoutes registers all order routes
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Post("/", h.Place)
		r.Get("/", h.ListMine)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole([]string{domain.RoleSeller}, h.logger))
			r.Get("/seller", h.ListSellerOrders)
			r.Get("/seller/payments", h.ListSellerPayments)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.logger))
			r.Get("/all", h.ListAll)
			r.Get("/stats", h.Stats)
			r.Get("/{orderID}", h.Details)
			r.Put("/{orderID}/status", h.UpdateStatus)
			r.Put("/{orderID}/notes", h.UpdateNotes)
			r.Put("/{orderID}/cancel", h.AdminCancel)
			r.Delete("/{orderID}", h.Delete)
		})

		r.Get("/{orderID}", h.GetMine)
		r.Put("/{orderID}/cancel", h.Cancel)
	})
}

// Place handles order placement
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}

	var req PlaceOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Order validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	lines := make([]domain.LineRequest, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			middleware.RespondWithDomainError(w, &domain.ValidationError{Field: "productId", Message: "invalid product id"}, h.exposeDetail)
			return
		}
		lines = append(lines, domain.LineRequest{ProductID: productID, Quantity: item.Quantity})
	}

	order, err := h.orderService.PlaceOrder(r.Context(), actor, lines, req.ShippingAddress, req.PaymentMethod)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to place order", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// ListMine lists the caller's orders
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}

	orders, err := h.orderService.ListMyOrders(r.Context(), actor)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to list orders", err, h.exposeDetail)
		return
	}

	respondOrders(w, orders)
}

// GetMine returns one of the caller's orders
func (h *OrderHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.orderService.GetMyOrder(r.Context(), actor, orderID)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to get order", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// Cancel handles cancellation by the buyer or a seller in the order
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.orderService.CancelOrder(r.Context(), actor, orderID)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to cancel order", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) ListSellerOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}

	orders, err := h.orderService.ListSellerOrders(r.Context(), actor)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to list seller orders", err, h.exposeDetail)
		return
	}

	respondOrders(w, orders)
}

func (h *OrderHandler) ListSellerPayments(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}

	payments, err := h.orderService.ListSellerPayments(r.Context(), actor)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to list seller payments", err, h.exposeDetail)
		return
	}
	if payments == nil {
		payments = []*domain.SellerPayment{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, PaymentListResponse{Payments: payments, Count: len(payments)})
}

// ListAll lists every order, optionally narrowed by ?status=
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	var filter domain.OrderFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			middleware.RespondWithDomainError(w, err, h.exposeDetail)
			return
		}
		filter.Status = &status
	}

	orders, err := h.orderService.ListAllOrders(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to list all orders", err, h.exposeDetail)
		return
	}

	respondOrders(w, orders)
}

func (h *OrderHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orderService.Stats(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "Failed to compute order stats", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, stats)
}

// Details returns an order with its items and payment
func (h *OrderHandler) Details(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrderDetails(r.Context(), orderID)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to get order details", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	var req OrderStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), actor, orderID, req.Status)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to update order status", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	var req OrderNotesRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	notes := req.AdminNotes
	if notes == nil {
		notes = req.AdminNotesSnake
	}
	if notes == nil {
		middleware.RespondWithDomainError(w, &domain.ValidationError{Field: "adminNotes", Message: "admin notes are required"}, h.exposeDetail)
		return
	}

	order, err := h.orderService.UpdateNotes(r.Context(), orderID, *notes)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to update order notes", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) AdminCancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.orderService.AdminCancel(r.Context(), actor, orderID)
	if err != nil {
		respondServiceError(w, h.logger, "Failed to cancel order", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	if err := h.orderService.DeleteOrder(r.Context(), actor, orderID); err != nil {
		respondServiceError(w, h.logger, "Failed to delete order", err, h.exposeDetail)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "order deleted"})
}

func respondOrders(w http.ResponseWriter, orders []*domain.Order) {
	if orders == nil {
		orders = []*domain.Order{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, OrderListResponse{Orders: orders, Count: len(orders)})
}
