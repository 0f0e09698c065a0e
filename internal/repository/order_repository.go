package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"plant-market/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CancelPolicy decides whether the acting user may cancel the locked order.
// It runs inside the cancellation transaction after the order row is locked.
type CancelPolicy func(order *domain.Order) error

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Place(ctx context.Context, in domain.PlaceOrderInput) (*domain.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Order, error)
	ListAll(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error)
	Stats(ctx context.Context) (*domain.OrderStats, error)
	Cancel(ctx context.Context, id uuid.UUID, policy CancelPolicy) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	UpdateAdminNotes(ctx context.Context, id uuid.UUID, notes string) (*domain.Order, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListSellerPayments(ctx context.Context, sellerID uuid.UUID) ([]*domain.SellerPayment, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, user_id, total, shipping_address, payment_method, status, admin_notes, created_at, updated_at`

// stockLine is a requested line after its product row has been locked
type stockLine struct {
	item      domain.OrderItem
	available int
}

// Place checks stock, writes the order, its items and its payment, and
// decrements stock, all in one transaction.
func (r *orderRepository) Place(ctx context.Context, in domain.PlaceOrderInput) (*domain.Order, error) {
	lines, err := domain.NormalizeLines(in.Items)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          in.UserID,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		Status:          domain.OrderPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = withTx(ctx, r.db, "place order", func(tx *sql.Tx) error {
		// Inventory check. Rows are locked in product id order.
		reserved := make([]stockLine, 0, len(lines))
		total := decimal.Zero
		for _, line := range lines {
			sl, err := checkStock(ctx, tx, order.ID, line)
			if err != nil {
				return err
			}
			total = total.Add(sl.item.Subtotal())
			reserved = append(reserved, sl)
		}
		order.Total = total

		if err := insertOrder(ctx, tx, order); err != nil {
			return err
		}

		for _, sl := range reserved {
			if err := insertOrderItem(ctx, tx, sl.item); err != nil {
				return err
			}
			if err := decrementStock(ctx, tx, sl); err != nil {
				return err
			}
			order.Items = append(order.Items, sl.item)
		}

		payment, err := insertPayment(ctx, tx, order)
		if err != nil {
			return err
		}
		order.Payment = payment

		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func checkStock(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, line domain.LineRequest) (stockLine, error) {
	query := `
		SELECT name, seller_id, price, stock
		FROM products
		WHERE id = $1
		FOR UPDATE
	`

	sl := stockLine{item: domain.OrderItem{
		OrderID:   orderID,
		ProductID: line.ProductID,
		Quantity:  line.Quantity,
	}}

	err := tx.QueryRowContext(ctx, query, line.ProductID).Scan(
		&sl.item.ProductName,
		&sl.item.SellerID,
		&sl.item.UnitPrice,
		&sl.available,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sl, &domain.NotFoundError{Resource: "product", ID: line.ProductID.String()}
		}
		return sl, fmt.Errorf("failed to read product stock: %w", err)
	}

	if sl.available < line.Quantity {
		return sl, &domain.InsufficientStockError{
			ProductID: line.ProductID.String(),
			Available: sl.available,
			Requested: line.Quantity,
		}
	}

	return sl, nil
}

// decrementStock is a single conditional write; zero affected rows means a
// concurrent buyer got there first.
func decrementStock(ctx context.Context, tx *sql.Tx, sl stockLine) error {
	query := `
		UPDATE products
		SET stock = stock - $1
		WHERE id = $2 AND stock >= $1
	`

	result, err := tx.ExecContext(ctx, query, sl.item.Quantity, sl.item.ProductID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return &domain.InsufficientStockError{
			ProductID: sl.item.ProductID.String(),
			Available: sl.available,
			Requested: sl.item.Quantity,
		}
	}

	return nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, user_id, total, shipping_address, payment_method, status, admin_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := tx.ExecContext(
		ctx,
		query,
		order.ID,
		order.UserID,
		order.Total,
		order.ShippingAddress,
		order.PaymentMethod,
		order.Status,
		order.AdminNotes,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

func insertOrderItem(ctx context.Context, tx *sql.Tx, item domain.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4)
	`

	_, err := tx.ExecContext(ctx, query, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice)
	if err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}

	return nil
}

func insertPayment(ctx context.Context, tx *sql.Tx, order *domain.Order) (*domain.Payment, error) {
	query := `
		INSERT INTO payments (id, order_id, amount, method, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	payment := &domain.Payment{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Amount:    order.Total,
		Method:    order.PaymentMethod,
		Status:    domain.PaymentPending,
		CreatedAt: order.CreatedAt,
	}

	_, err := tx.ExecContext(
		ctx,
		query,
		payment.ID,
		payment.OrderID,
		payment.Amount,
		payment.Method,
		payment.Status,
		payment.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	return payment, nil
}

// FindByID retrieves an order with its line items and payment
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "order", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	if order.Items, err = loadItems(ctx, r.db, id); err != nil {
		return nil, err
	}

	if order.Payment, err = loadPayment(ctx, r.db, id); err != nil {
		return nil, err
	}

	return order, nil
}

// ListByUser retrieves a user's orders, newest first
func (r *orderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	return r.listOrders(ctx, query, userID)
}

// ListBySeller retrieves orders containing at least one of the seller's products
func (r *orderRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Order, error) {
	query := `
		SELECT o.id, o.user_id, o.total, o.shipping_address, o.payment_method, o.status, o.admin_notes, o.created_at, o.updated_at
		FROM orders o
		WHERE EXISTS (
			SELECT 1 FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = o.id AND p.seller_id = $1
		)
		ORDER BY o.created_at DESC
	`
	return r.listOrders(ctx, query, sellerID)
}

// ListAll retrieves every order, optionally filtered by status
func (r *orderRepository) ListAll(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	if filter.Status != nil {
		query := `SELECT ` + orderColumns + ` FROM orders WHERE status = $1 ORDER BY created_at DESC`
		return r.listOrders(ctx, query, *filter.Status)
	}

	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	return r.listOrders(ctx, query)
}

func (r *orderRepository) listOrders(ctx context.Context, query string, args ...interface{}) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// Stats aggregates order counts per status and completed revenue
func (r *orderRepository) Stats(ctx context.Context) (*domain.OrderStats, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(total), 0)
		FROM orders
		GROUP BY status
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}
	defer rows.Close()

	stats := &domain.OrderStats{
		ByStatus:          make(map[domain.OrderStatus]int, len(domain.OrderStatuses)),
		Revenue:           decimal.Zero,
		AverageOrderValue: decimal.Zero,
	}
	for _, s := range domain.OrderStatuses {
		stats.ByStatus[s] = 0
	}

	for rows.Next() {
		var (
			status domain.OrderStatus
			count  int
			sum    decimal.Decimal
		)
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan order stats: %w", err)
		}
		stats.ByStatus[status] = count
		stats.TotalOrders += count
		if status == domain.OrderCompleted {
			stats.Revenue = sum
		}
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order stats: %w", err)
	}

	if completed := stats.ByStatus[domain.OrderCompleted]; completed > 0 {
		stats.AverageOrderValue = stats.Revenue.Div(decimal.NewFromInt(int64(completed))).Round(2)
	}

	return stats, nil
}

// Cancel flips the order to cancelled and restores stock for every line
// item. Status change and restock commit together or not at all.
func (r *orderRepository) Cancel(ctx context.Context, id uuid.UUID, policy CancelPolicy) (*domain.Order, error) {
	var order *domain.Order

	err := withTx(ctx, r.db, "cancel order", func(tx *sql.Tx) error {
		var err error
		if order, err = lockOrder(ctx, tx, id); err != nil {
			return err
		}

		if order.Items, err = loadItems(ctx, tx, id); err != nil {
			return err
		}

		if policy != nil {
			if err := policy(order); err != nil {
				return err
			}
		}

		if !order.Status.CanCancel() {
			return &domain.InvalidTransitionError{From: order.Status, To: domain.OrderCancelled}
		}

		if err := setStatus(ctx, tx, order, domain.OrderCancelled); err != nil {
			return err
		}

		for _, item := range order.Items {
			if err := restoreStock(ctx, tx, item); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func restoreStock(ctx context.Context, tx *sql.Tx, item domain.OrderItem) error {
	query := `UPDATE products SET stock = stock + $1 WHERE id = $2`

	result, err := tx.ExecContext(ctx, query, item.Quantity, item.ProductID)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return &domain.NotFoundError{Resource: "product", ID: item.ProductID.String()}
	}

	return nil
}

// UpdateStatus advances an order one step along pending → processing → shipped → completed
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	var order *domain.Order

	err := withTx(ctx, r.db, "update order status", func(tx *sql.Tx) error {
		var err error
		if order, err = lockOrder(ctx, tx, id); err != nil {
			return err
		}

		if !order.Status.CanAdvanceTo(status) {
			return &domain.InvalidTransitionError{From: order.Status, To: status}
		}

		return setStatus(ctx, tx, order, status)
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func lockOrder(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

	order, err := scanOrder(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "order", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	return order, nil
}

func setStatus(ctx context.Context, tx *sql.Tx, order *domain.Order, status domain.OrderStatus) error {
	query := `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, query, order.ID, status, now); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	order.Status = status
	order.UpdatedAt = now
	return nil
}

// UpdateAdminNotes replaces the admin notes; allowed in every status
func (r *orderRepository) UpdateAdminNotes(ctx context.Context, id uuid.UUID, notes string) (*domain.Order, error) {
	query := `
		UPDATE orders
		SET admin_notes = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + orderColumns

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id, notes, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "order", ID: id.String()}
		}
		return nil, fmt.Errorf("failed to update order notes: %w", err)
	}

	return order, nil
}

// Delete hard-deletes an order. Payments and items go first to satisfy
// foreign keys. Stock is not restored.
func (r *orderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return withTx(ctx, r.db, "delete order", func(tx *sql.Tx) error {
		if _, err := lockOrder(ctx, tx, id); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE order_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete payments: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete order items: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}

		return nil
	})
}

// ListSellerPayments retrieves payments of orders that contain the seller's products
func (r *orderRepository) ListSellerPayments(ctx context.Context, sellerID uuid.UUID) ([]*domain.SellerPayment, error) {
	query := `
		SELECT pay.id, pay.order_id, pay.amount, pay.method, pay.status, pay.created_at, o.user_id
		FROM payments pay
		JOIN orders o ON pay.order_id = o.id
		WHERE EXISTS (
			SELECT 1 FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = o.id AND p.seller_id = $1
		)
		ORDER BY pay.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seller payments: %w", err)
	}
	defer rows.Close()

	payments := []*domain.SellerPayment{}
	for rows.Next() {
		p := &domain.SellerPayment{}
		err := rows.Scan(
			&p.ID,
			&p.OrderID,
			&p.Amount,
			&p.Method,
			&p.Status,
			&p.CreatedAt,
			&p.UserID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func loadItems(ctx context.Context, q queryer, orderID uuid.UUID) ([]domain.OrderItem, error) {
	query := `
		SELECT oi.order_id, oi.product_id, p.name, p.seller_id, oi.quantity, oi.price
		FROM order_items oi
		JOIN products p ON oi.product_id = p.id
		WHERE oi.order_id = $1
		ORDER BY oi.product_id
	`

	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	items := []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		err := rows.Scan(
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.SellerID,
			&item.Quantity,
			&item.UnitPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

func loadPayment(ctx context.Context, q queryer, orderID uuid.UUID) (*domain.Payment, error) {
	query := `
		SELECT id, order_id, amount, method, status, created_at
		FROM payments
		WHERE order_id = $1
	`

	payment := &domain.Payment{}
	err := q.QueryRowContext(ctx, query, orderID).Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.Amount,
		&payment.Method,
		&payment.Status,
		&payment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}

	return payment, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Total,
		&order.ShippingAddress,
		&order.PaymentMethod,
		&order.Status,
		&order.AdminNotes,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}
