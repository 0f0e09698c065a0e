package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"plant-market/internal/domain"
	"plant-market/internal/events"
	"plant-market/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService places orders and drives their lifecycle. Every mutating
// operation runs in a single repository transaction; events go out only
// after it commits.
type OrderService interface {
	PlaceOrder(ctx context.Context, actor domain.Actor, items []domain.LineRequest, shippingAddress, paymentMethod string) (*domain.Order, error)
	ListMyOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error)
	GetMyOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error)
	CancelOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error)

	ListSellerOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error)
	ListSellerPayments(ctx context.Context, actor domain.Actor) ([]*domain.SellerPayment, error)

	ListAllOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error)
	Stats(ctx context.Context) (*domain.OrderStats, error)
	GetOrderDetails(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, orderID uuid.UUID, rawStatus string) (*domain.Order, error)
	UpdateNotes(ctx context.Context, orderID uuid.UUID, notes string) (*domain.Order, error)
	AdminCancel(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error)
	DeleteOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) error
}

type orderService struct {
	orderRepo repository.OrderRepository
	sellers   SellerService
	publisher events.Publisher
	logger    *zap.Logger
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orderRepo repository.OrderRepository,
	sellers SellerService,
	publisher events.Publisher,
	logger *zap.Logger,
) OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &orderService{
		orderRepo: orderRepo,
		sellers:   sellers,
		publisher: publisher,
		logger:    logger,
	}
}

// PlaceOrder validates the request and hands it to the transactional placement
func (s *orderService) PlaceOrder(ctx context.Context, actor domain.Actor, items []domain.LineRequest, shippingAddress, paymentMethod string) (*domain.Order, error) {
	shippingAddress = strings.TrimSpace(shippingAddress)
	paymentMethod = strings.TrimSpace(paymentMethod)

	if shippingAddress == "" {
		return nil, &domain.ValidationError{Field: "shippingAddress", Message: "shipping address is required"}
	}
	if paymentMethod == "" {
		return nil, &domain.ValidationError{Field: "paymentMethod", Message: "payment method is required"}
	}

	order, err := s.orderRepo.Place(ctx, domain.PlaceOrderInput{
		UserID:          actor.ID,
		Items:           items,
		ShippingAddress: shippingAddress,
		PaymentMethod:   paymentMethod,
	})
	if err != nil {
		s.logFailure("place order", actor, uuid.Nil, err)
		return nil, err
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", actor.ID.String()),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("lines", len(order.Items)),
	)
	s.publish(ctx, events.OrderPlaced, order, "", actor)

	return order, nil
}

func (s *orderService) ListMyOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error) {
	return s.orderRepo.ListByUser(ctx, actor.ID)
}

// GetMyOrder returns an order owned by actor. Orders belonging to someone
// else are reported as not found.
func (s *orderService) GetMyOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.UserID != actor.ID {
		return nil, &domain.NotFoundError{Resource: "order", ID: orderID.String()}
	}

	return order, nil
}

// CancelOrder cancels a pending order on behalf of its buyer or of a seller
// whose product is in it
func (s *orderService) CancelOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error) {
	sellerID, isSeller, err := s.sellers.ResolveSellerID(ctx, actor)
	if err != nil {
		return nil, err
	}

	policy := func(order *domain.Order) error {
		owner := order.UserID == actor.ID
		seller := isSeller && order.HasSeller(sellerID)
		if !owner && !seller {
			return &domain.NotFoundError{Resource: "order", ID: order.ID.String()}
		}
		if order.Status != domain.OrderPending {
			return &domain.InvalidTransitionError{From: order.Status, To: domain.OrderCancelled}
		}
		return nil
	}

	return s.cancel(ctx, actor, orderID, policy)
}

func (s *orderService) cancel(ctx context.Context, actor domain.Actor, orderID uuid.UUID, policy repository.CancelPolicy) (*domain.Order, error) {
	var previous domain.OrderStatus
	recordingPolicy := func(order *domain.Order) error {
		previous = order.Status
		if policy == nil {
			return nil
		}
		return policy(order)
	}

	order, err := s.orderRepo.Cancel(ctx, orderID, recordingPolicy)
	if err != nil {
		s.logFailure("cancel order", actor, orderID, err)
		return nil, err
	}

	s.logger.Info("Order cancelled",
		zap.String("order_id", order.ID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.String("previous_status", string(previous)),
	)
	s.publish(ctx, events.OrderCancelled, order, previous, actor)

	return order, nil
}

func (s *orderService) ListSellerOrders(ctx context.Context, actor domain.Actor) ([]*domain.Order, error) {
	sellerID, err := s.requireSeller(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.orderRepo.ListBySeller(ctx, sellerID)
}

func (s *orderService) ListSellerPayments(ctx context.Context, actor domain.Actor) ([]*domain.SellerPayment, error) {
	sellerID, err := s.requireSeller(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.orderRepo.ListSellerPayments(ctx, sellerID)
}

func (s *orderService) requireSeller(ctx context.Context, actor domain.Actor) (uuid.UUID, error) {
	sellerID, ok, err := s.sellers.ResolveSellerID(ctx, actor)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, &domain.AuthorizationError{Action: "approved seller profile required"}
	}
	return sellerID, nil
}

func (s *orderService) ListAllOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, &domain.ValidationError{Field: "status", Message: "invalid status value"}
	}
	return s.orderRepo.ListAll(ctx, filter)
}

func (s *orderService) Stats(ctx context.Context) (*domain.OrderStats, error) {
	return s.orderRepo.Stats(ctx)
}

func (s *orderService) GetOrderDetails(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.orderRepo.FindByID(ctx, orderID)
}

// UpdateStatus moves an order one step forward. "cancelled" is routed
// through cancellation so stock is restored.
func (s *orderService) UpdateStatus(ctx context.Context, actor domain.Actor, orderID uuid.UUID, rawStatus string) (*domain.Order, error) {
	status, err := domain.ParseOrderStatus(strings.TrimSpace(rawStatus))
	if err != nil {
		return nil, err
	}

	if status == domain.OrderCancelled {
		return s.cancel(ctx, actor, orderID, nil)
	}

	order, err := s.orderRepo.UpdateStatus(ctx, orderID, status)
	if err != nil {
		s.logFailure("update order status", actor, orderID, err)
		return nil, err
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", order.ID.String()),
		zap.String("status", string(order.Status)),
		zap.String("actor_id", actor.ID.String()),
	)
	s.publish(ctx, events.OrderStatusChanged, order, status.Previous(), actor)

	return order, nil
}

func (s *orderService) UpdateNotes(ctx context.Context, orderID uuid.UUID, notes string) (*domain.Order, error) {
	return s.orderRepo.UpdateAdminNotes(ctx, orderID, notes)
}

// AdminCancel cancels from any non-terminal status
func (s *orderService) AdminCancel(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error) {
	return s.cancel(ctx, actor, orderID, nil)
}

// DeleteOrder hard-deletes an order with its items and payment. Stock is
// not restored.
func (s *orderService) DeleteOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) error {
	if err := s.orderRepo.Delete(ctx, orderID); err != nil {
		s.logFailure("delete order", actor, orderID, err)
		return err
	}

	s.logger.Warn("Order deleted",
		zap.String("order_id", orderID.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	s.publish(ctx, events.OrderDeleted, &domain.Order{ID: orderID}, "", actor)

	return nil
}

// publish never fails the caller: the order change is already committed
func (s *orderService) publish(ctx context.Context, eventType string, order *domain.Order, previous domain.OrderStatus, actor domain.Actor) {
	env, err := events.OrderEvent(eventType, order, previous, actor)
	if err == nil {
		err = s.publisher.Publish(ctx, env)
	}
	if err != nil {
		s.logger.Error("Failed to publish order event",
			zap.Error(err),
			zap.String("event_type", eventType),
			zap.String("order_id", order.ID.String()),
		)
	}
}

func (s *orderService) logFailure(op string, actor domain.Actor, orderID uuid.UUID, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("actor_id", actor.ID.String()),
		zap.Error(err),
	}
	if orderID != uuid.Nil {
		fields = append(fields, zap.String("order_id", orderID.String()))
	}

	var txErr *domain.TransactionError
	if errors.As(err, &txErr) {
		s.logger.Error(fmt.Sprintf("Failed to %s", op), fields...)
		return
	}
	s.logger.Debug(fmt.Sprintf("Rejected %s", op), fields...)
}
