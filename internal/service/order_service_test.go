package service

import (
	"context"
	"errors"
	"testing"

	"plant-market/internal/domain"
	"plant-market/internal/events"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type orderFixture struct {
	svc       OrderService
	orders    *mockOrderRepository
	sellers   *mockSellerRepository
	publisher *recordingPublisher

	buyer    domain.Actor
	stranger domain.Actor
	admin    domain.Actor
	seller   domain.Actor
	other    domain.Actor
	product  uuid.UUID
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		orders:    newMockOrderRepository(),
		sellers:   newMockSellerRepository(),
		publisher: &recordingPublisher{},
		buyer:     domain.Actor{ID: uuid.New(), Role: domain.RoleUser},
		stranger:  domain.Actor{ID: uuid.New(), Role: domain.RoleUser},
		admin:     domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin},
		seller:    domain.Actor{ID: uuid.New(), Role: domain.RoleSeller},
		other:     domain.Actor{ID: uuid.New(), Role: domain.RoleSeller},
	}

	s := f.sellers.add(f.seller.ID, domain.SellerApproved)
	f.sellers.add(f.other.ID, domain.SellerApproved)
	f.product = f.orders.addProduct(s.ID, "10.00", 5)

	sellerSvc := NewSellerService(f.sellers, zap.NewNop())
	f.svc = NewOrderService(f.orders, sellerSvc, f.publisher, zap.NewNop())
	return f
}

func (f *orderFixture) place(t *testing.T, qty int) *domain.Order {
	t.Helper()
	order, err := f.svc.PlaceOrder(context.Background(), f.buyer,
		[]domain.LineRequest{{ProductID: f.product, Quantity: qty}}, "1 Fern Lane", "card")
	require.NoError(t, err)
	return order
}

func TestOrderService_PlaceOrderPublishesAfterSuccess(t *testing.T) {
	f := newOrderFixture()

	order := f.place(t, 3)

	assert.True(t, decimal.RequireFromString("30.00").Equal(order.Total))
	assert.Equal(t, 2, f.orders.stock[f.product])
	assert.Equal(t, []string{events.OrderPlaced}, f.publisher.types())
	assert.Equal(t, order.ID.String(), f.publisher.events[0].CorrelationID)
}

func TestOrderService_PlaceOrderFailurePublishesNothing(t *testing.T) {
	f := newOrderFixture()

	_, err := f.svc.PlaceOrder(context.Background(), f.buyer,
		[]domain.LineRequest{{ProductID: f.product, Quantity: 6}}, "1 Fern Lane", "card")

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Available)
	assert.Equal(t, 6, stockErr.Requested)
	assert.Empty(t, f.publisher.types())
	assert.Equal(t, 5, f.orders.stock[f.product])
}

func TestOrderService_PlaceOrderValidatesRequest(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	line := []domain.LineRequest{{ProductID: f.product, Quantity: 1}}

	cases := []struct {
		name    string
		items   []domain.LineRequest
		address string
		method  string
		field   string
	}{
		{"no address", line, "  ", "card", "shippingAddress"},
		{"no method", line, "1 Fern Lane", "", "paymentMethod"},
		{"no items", nil, "1 Fern Lane", "card", "items"},
		{"zero quantity", []domain.LineRequest{{ProductID: f.product}}, "1 Fern Lane", "card", "quantity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.PlaceOrder(ctx, f.buyer, tc.items, tc.address, tc.method)

			var validation *domain.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tc.field, validation.Field)
		})
	}
	assert.Empty(t, f.publisher.types())
}

func TestOrderService_PublishFailureDoesNotFailOrder(t *testing.T) {
	f := newOrderFixture()
	f.publisher.err = errors.New("broker down")

	order := f.place(t, 1)

	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, 4, f.orders.stock[f.product])
}

func TestOrderService_GetMyOrderHidesOtherUsersOrders(t *testing.T) {
	f := newOrderFixture()
	order := f.place(t, 1)
	ctx := context.Background()

	got, err := f.svc.GetMyOrder(ctx, f.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = f.svc.GetMyOrder(ctx, f.stranger, order.ID)
	assert.True(t, domain.IsNotFound(err))

	_, err = f.svc.GetMyOrder(ctx, f.buyer, uuid.New())
	assert.True(t, domain.IsNotFound(err))
}

func TestOrderService_CancelPolicy(t *testing.T) {
	cases := []struct {
		name    string
		actor   func(f *orderFixture) domain.Actor
		status  domain.OrderStatus
		wantErr func(error) bool
	}{
		{"owner cancels pending", func(f *orderFixture) domain.Actor { return f.buyer }, domain.OrderPending, nil},
		{"seller of product cancels pending", func(f *orderFixture) domain.Actor { return f.seller }, domain.OrderPending, nil},
		{"stranger gets not found", func(f *orderFixture) domain.Actor { return f.stranger }, domain.OrderPending, domain.IsNotFound},
		{"unrelated seller gets not found", func(f *orderFixture) domain.Actor { return f.other }, domain.OrderPending, domain.IsNotFound},
		{"owner cannot cancel processing", func(f *orderFixture) domain.Actor { return f.buyer }, domain.OrderProcessing, domain.IsInvalidTransition},
		{"seller cannot cancel shipped", func(f *orderFixture) domain.Actor { return f.seller }, domain.OrderShipped, domain.IsInvalidTransition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newOrderFixture()
			order := f.place(t, 2)
			order.Status = tc.status

			_, err := f.svc.CancelOrder(context.Background(), tc.actor(f), order.ID)

			if tc.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, domain.OrderCancelled, order.Status)
				assert.Equal(t, 5, f.orders.stock[f.product])
				assert.Equal(t, []string{events.OrderPlaced, events.OrderCancelled}, f.publisher.types())
				return
			}

			assert.True(t, tc.wantErr(err), "unexpected error: %v", err)
			assert.Equal(t, tc.status, order.Status)
			assert.Equal(t, 3, f.orders.stock[f.product])
			assert.Equal(t, []string{events.OrderPlaced}, f.publisher.types())
		})
	}
}

func TestOrderService_AdminCancelFromAnyNonTerminalState(t *testing.T) {
	for _, status := range []domain.OrderStatus{domain.OrderPending, domain.OrderProcessing, domain.OrderShipped} {
		t.Run(string(status), func(t *testing.T) {
			f := newOrderFixture()
			order := f.place(t, 2)
			order.Status = status

			cancelled, err := f.svc.AdminCancel(context.Background(), f.admin, order.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.OrderCancelled, cancelled.Status)
			assert.Equal(t, 5, f.orders.stock[f.product])
		})
	}
}

func TestOrderService_UpdateStatusRejectsUnknownValues(t *testing.T) {
	f := newOrderFixture()
	order := f.place(t, 1)

	for _, raw := range []string{"", "delivered", "PENDING"} {
		_, err := f.svc.UpdateStatus(context.Background(), f.admin, order.ID, raw)

		var validation *domain.ValidationError
		require.ErrorAs(t, err, &validation, "status %q", raw)
		assert.Equal(t, "status", validation.Field)
	}
	assert.Equal(t, domain.OrderPending, order.Status)
}

func TestOrderService_UpdateStatusToCancelledRestoresStock(t *testing.T) {
	f := newOrderFixture()
	order := f.place(t, 4)
	order.Status = domain.OrderProcessing

	updated, err := f.svc.UpdateStatus(context.Background(), f.admin, order.ID, "cancelled")
	require.NoError(t, err)

	assert.Equal(t, domain.OrderCancelled, updated.Status)
	assert.Equal(t, 5, f.orders.stock[f.product])
	assert.Equal(t, []string{events.OrderPlaced, events.OrderCancelled}, f.publisher.types())
}

func TestOrderService_UpdateStatusWalksLifecycle(t *testing.T) {
	f := newOrderFixture()
	order := f.place(t, 1)
	ctx := context.Background()

	for _, next := range []string{"processing", "shipped", "completed"} {
		updated, err := f.svc.UpdateStatus(ctx, f.admin, order.ID, next)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatus(next), updated.Status)
	}

	_, err := f.svc.UpdateStatus(ctx, f.admin, order.ID, "cancelled")
	assert.True(t, domain.IsInvalidTransition(err))
	assert.Equal(t, 4, f.orders.stock[f.product])
	assert.Equal(t, []string{
		events.OrderPlaced, events.OrderStatusChanged, events.OrderStatusChanged, events.OrderStatusChanged,
	}, f.publisher.types())
}

func TestOrderService_SellerViewsRequireProfile(t *testing.T) {
	f := newOrderFixture()
	f.place(t, 1)
	ctx := context.Background()

	orders, err := f.svc.ListSellerOrders(ctx, f.seller)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	payments, err := f.svc.ListSellerPayments(ctx, f.seller)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, f.buyer.ID, payments[0].UserID)

	orders, err = f.svc.ListSellerOrders(ctx, f.other)
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = f.svc.ListSellerOrders(ctx, f.stranger)
	var authz *domain.AuthorizationError
	assert.ErrorAs(t, err, &authz)
}

func TestOrderService_SuspendedSellerLosesSellerPowers(t *testing.T) {
	f := newOrderFixture()
	order := f.place(t, 2)
	ctx := context.Background()

	profile, err := f.sellers.FindByUserID(ctx, f.seller.ID)
	require.NoError(t, err)
	profile.Status = domain.SellerSuspended

	_, err = f.svc.CancelOrder(ctx, f.seller, order.ID)
	assert.True(t, domain.IsNotFound(err), "unexpected error: %v", err)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, 3, f.orders.stock[f.product])

	_, err = f.svc.ListSellerOrders(ctx, f.seller)
	var authz *domain.AuthorizationError
	assert.ErrorAs(t, err, &authz)

	_, err = f.svc.ListSellerPayments(ctx, f.seller)
	assert.ErrorAs(t, err, &authz)
}

func TestOrderService_DeleteKeepsStockAndPublishes(t *testing.T) {
	f := newOrderFixture()
	order := f.place(t, 2)

	require.NoError(t, f.svc.DeleteOrder(context.Background(), f.admin, order.ID))

	_, err := f.svc.GetOrderDetails(context.Background(), order.ID)
	assert.True(t, domain.IsNotFound(err))
	assert.Equal(t, 3, f.orders.stock[f.product])
	assert.Equal(t, []string{events.OrderPlaced, events.OrderDeleted}, f.publisher.types())
}

func TestOrderService_ListAllRejectsInvalidFilter(t *testing.T) {
	f := newOrderFixture()
	bad := domain.OrderStatus("lost")

	_, err := f.svc.ListAllOrders(context.Background(), domain.OrderFilter{Status: &bad})

	var validation *domain.ValidationError
	assert.ErrorAs(t, err, &validation)
}

// Cancelling twice never restores stock twice
func TestProperty_DoubleCancelRestoresOnce(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("second cancel is an invalid transition and stock is unchanged", prop.ForAll(
		func(qty int) bool {
			f := newOrderFixture()
			ctx := context.Background()

			order, err := f.svc.PlaceOrder(ctx, f.buyer,
				[]domain.LineRequest{{ProductID: f.product, Quantity: qty}}, "1 Fern Lane", "card")
			if err != nil {
				t.Logf("FAIL: place: %v", err)
				return false
			}

			if _, err := f.svc.CancelOrder(ctx, f.buyer, order.ID); err != nil {
				t.Logf("FAIL: first cancel: %v", err)
				return false
			}
			_, err = f.svc.CancelOrder(ctx, f.buyer, order.ID)

			return domain.IsInvalidTransition(err) && f.orders.stock[f.product] == 5
		},
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
