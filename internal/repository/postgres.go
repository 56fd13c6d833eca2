package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

const orderColumns = `id, user_id, total_price, status, shipping_address, paystack_reference, created_at, updated_at`

// PostgresOrderRepository implements OrderRepository using PostgreSQL.
type PostgresOrderRepository struct {
	db     *sql.DB
	logger *logrus.Entry
}

// NewPostgresOrderRepository creates a new PostgreSQL order repository.
func NewPostgresOrderRepository(db *sql.DB, logger *logrus.Entry) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		db:     db,
		logger: logger,
	}
}

// Create writes the order row and then its items inside one transaction.
// The caller fills in UserID, TotalPrice, ShippingAddress, PaystackReference
// and Items; ids, status and timestamps are assigned here.
func (r *PostgresOrderRepository) Create(ctx context.Context, order *models.Order) error {
	r.logger.WithFields(logrus.Fields{
		"user_id":    order.UserID,
		"item_count": len(order.Items),
	}).Debug("Creating order")

	now := time.Now().UTC()
	order.ID = uuid.NewString()
	order.Status = models.OrderStatusPendingVerification
	order.CreatedAt = now
	order.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Internal("failed to start transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.WithError(rbErr).WithField("order_id", order.ID).Error("Failed to roll back order")
			}
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		order.ID,
		order.UserID,
		order.TotalPrice,
		order.Status,
		order.ShippingAddress,
		order.PaystackReference,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("reference", "an order with this payment reference already exists")
		}
		r.logger.WithError(err).WithField("user_id", order.UserID).Error("Failed to insert order")
		return apperrors.Internal("failed to create order", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.ID = uuid.NewString()
		item.OrderID = order.ID

		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price_at_purchase)
			VALUES ($1, $2, $3, $4, $5)
		`, item.ID, item.OrderID, item.ProductID, item.Quantity, item.PriceAtPurchase)
		if err != nil {
			r.logger.WithError(err).WithFields(logrus.Fields{
				"order_id":   order.ID,
				"product_id": item.ProductID,
			}).Error("Failed to insert order item")
			if isForeignKeyViolation(err) {
				return apperrors.NotFound("product not found")
			}
			return apperrors.Internal("failed to create order items", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return apperrors.Internal("failed to commit order", err)
	}

	r.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"total":    order.TotalPrice.String(),
	}).Info("Order created")

	return nil
}

// GetByID retrieves an order and its items.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.logger.WithField("order_id", id).Debug("Fetching order by ID")

	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return r.getOne(ctx, row, "order_id", id)
}

// GetByReference retrieves an order by its Paystack reference.
func (r *PostgresOrderRepository) GetByReference(ctx context.Context, reference string) (*models.Order, error) {
	r.logger.WithField("reference", reference).Debug("Fetching order by reference")

	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE paystack_reference = $1`, reference)
	return r.getOne(ctx, row, "reference", reference)
}

func (r *PostgresOrderRepository) getOne(ctx context.Context, row *sql.Row, field, value string) (*models.Order, error) {
	order, err := scanOrder(row)
	if err == sql.ErrNoRows || isInvalidID(err) {
		return nil, apperrors.NotFound("order not found")
	}
	if err != nil {
		r.logger.WithError(err).WithField(field, value).Error("Failed to fetch order")
		return nil, apperrors.Internal("failed to fetch order", err)
	}

	items, err := r.items(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func (r *PostgresOrderRepository) items(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price_at_purchase
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch order items", err)
	}
	defer rows.Close()

	items := make([]models.OrderItem, 0)
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.PriceAtPurchase); err != nil {
			return nil, apperrors.Internal("failed to read order item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to read order items", err)
	}
	return items, nil
}

// MarkPaid performs the single pending_verification -> paid transition.
// A second call for the same order affects no rows and reports false.
func (r *PostgresOrderRepository) MarkPaid(ctx context.Context, id string) (bool, error) {
	r.logger.WithField("order_id", id).Debug("Marking order paid")

	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
	`, id, models.OrderStatusPaid, time.Now().UTC(), models.OrderStatusPendingVerification)
	if isInvalidID(err) {
		return false, apperrors.NotFound("order not found")
	}
	if err != nil {
		r.logger.WithError(err).WithField("order_id", id).Error("Failed to mark order paid")
		return false, apperrors.Internal("failed to update order", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.WithError(err).WithField("order_id", id).Error("Failed to read mark paid result")
		return false, apperrors.Internal("failed to update order", err)
	}
	if rowsAffected == 1 {
		r.logger.WithField("order_id", id).Info("Order marked paid")
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, apperrors.Internal("failed to check order", err)
	}
	if !exists {
		return false, apperrors.NotFound("order not found")
	}
	return false, nil
}

// UpdateStatus updates the status of an order guarded by its current status,
// so two admins racing on the same order cannot both apply a transition.
func (r *PostgresOrderRepository) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) (*models.Order, error) {
	r.logger.WithFields(logrus.Fields{
		"order_id":    id,
		"from_status": from,
		"new_status":  to,
	}).Debug("Updating order status")

	var returnedID string
	err := r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
		RETURNING id
	`, id, to, time.Now().UTC(), from).Scan(&returnedID)
	if err == sql.ErrNoRows {
		return nil, apperrors.Conflict("status", "order status changed concurrently")
	}
	if isInvalidID(err) {
		return nil, apperrors.NotFound("order not found")
	}
	if err != nil {
		r.logger.WithError(err).WithField("order_id", id).Error("Failed to update order status")
		return nil, apperrors.Internal("failed to update order status", err)
	}

	r.logger.WithFields(logrus.Fields{
		"order_id":   id,
		"new_status": to,
	}).Info("Order status updated")

	return r.GetByID(ctx, id)
}

// List retrieves orders based on filter criteria, newest first. Items are
// not loaded.
func (r *PostgresOrderRepository) List(ctx context.Context, filter *models.OrderListFilter) ([]*models.Order, int, error) {
	r.logger.WithFields(logrus.Fields{
		"user_id": filter.UserID,
		"status":  filter.Status,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	}).Debug("Listing orders")

	where := " FROM orders WHERE TRUE"
	args := make([]interface{}, 0, 4)

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where += " AND user_id = $" + strconv.Itoa(len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += " AND status = $" + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+where, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.Internal("failed to count orders", err)
	}

	query := fmt.Sprintf("SELECT %s%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		orderColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).Error("Failed to list orders")
		return nil, 0, apperrors.Internal("failed to list orders", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, apperrors.Internal("failed to read order", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.Internal("failed to read orders", err)
	}

	r.logger.WithFields(logrus.Fields{
		"count": len(orders),
		"total": total,
	}).Info("Orders listed")

	return orders, total, nil
}

// Stats counts orders per status and sums revenue over settled orders.
func (r *PostgresOrderRepository) Stats(ctx context.Context) (*models.OrderStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_price), 0)
		FROM orders
		GROUP BY status
	`)
	if err != nil {
		return nil, apperrors.Internal("failed to compute order stats", err)
	}
	defer rows.Close()

	stats := &models.OrderStats{
		CountByStatus: make(map[models.OrderStatus]int, len(models.OrderStatuses)),
		PaidRevenue:   decimal.Zero,
	}
	for _, s := range models.OrderStatuses {
		stats.CountByStatus[s] = 0
	}

	for rows.Next() {
		var (
			status models.OrderStatus
			count  int
			sum    decimal.Decimal
		)
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, apperrors.Internal("failed to read order stats", err)
		}
		stats.CountByStatus[status] = count
		stats.TotalOrders += count
		if status.IsSettled() {
			stats.PaidRevenue = stats.PaidRevenue.Add(sum)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to read order stats", err)
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.TotalPrice,
		&order.Status,
		&order.ShippingAddress,
		&order.PaystackReference,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}
