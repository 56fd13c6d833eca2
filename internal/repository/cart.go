package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// PostgresCartRepository stores cart rows keyed by (user_id, product_id).
type PostgresCartRepository struct {
	db     *sql.DB
	logger *logrus.Entry
}

func NewPostgresCartRepository(db *sql.DB, logger *logrus.Entry) *PostgresCartRepository {
	return &PostgresCartRepository{db: db, logger: logger}
}

func (r *PostgresCartRepository) List(ctx context.Context, userID string) ([]*models.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.product_id, c.quantity, p.name, p.price, COALESCE(p.image_urls[1], ''), c.created_at
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at
	`, userID)
	if err != nil {
		r.logger.WithError(err).WithField("user_id", userID).Error("Failed to list cart")
		return nil, apperrors.Internal("failed to list cart", err)
	}
	defer rows.Close()

	items := make([]*models.CartItem, 0)
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Name, &item.Price, &item.ImageURL, &item.AddedAt); err != nil {
			return nil, apperrors.Internal("failed to read cart item", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to read cart", err)
	}
	return items, nil
}

func (r *PostgresCartRepository) Add(ctx context.Context, userID, productID string, quantity int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, userID, productID, quantity)
	if err != nil {
		return r.mutationError(err, userID, productID)
	}

	r.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"product_id": productID,
		"quantity":   quantity,
	}).Debug("Cart item added")
	return nil
}

// SetQuantity never stores a zero row: quantity 0 deletes it.
func (r *PostgresCartRepository) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity == 0 {
		return r.Remove(ctx, userID, productID)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity
	`, userID, productID, quantity)
	if err != nil {
		return r.mutationError(err, userID, productID)
	}
	return nil
}

func (r *PostgresCartRepository) Remove(ctx context.Context, userID, productID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return r.mutationError(err, userID, productID)
	}

	r.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"product_id": productID,
	}).Debug("Cart item removed")
	return nil
}

func (r *PostgresCartRepository) Merge(ctx context.Context, userID string, lines []models.CartLine) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Internal("failed to start transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, line := range lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cart_items (user_id, product_id, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, product_id)
			DO UPDATE SET quantity = GREATEST(cart_items.quantity, EXCLUDED.quantity)
		`, userID, line.ProductID, line.Quantity)
		if err != nil {
			return r.mutationError(err, userID, line.ProductID)
		}
	}

	if err = tx.Commit(); err != nil {
		return apperrors.Internal("failed to commit cart merge", err)
	}

	r.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"lines":   len(lines),
	}).Info("Cart merged")
	return nil
}

func (r *PostgresCartRepository) RemoveProducts(ctx context.Context, userID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = ANY($2::uuid[])`,
		userID, pq.Array(productIDs))
	if err != nil {
		return apperrors.Internal("failed to clear cart", err)
	}
	return nil
}

func (r *PostgresCartRepository) mutationError(err error, userID, productID string) error {
	if isForeignKeyViolation(err) || isInvalidID(err) {
		return apperrors.NotFound("product not found")
	}
	r.logger.WithError(err).WithFields(logrus.Fields{
		"user_id":    userID,
		"product_id": productID,
	}).Error("Cart mutation failed")
	return apperrors.Internal("failed to update cart", err)
}

// PostgresWishlistRepository stores wishlist rows keyed by (user_id, product_id).
type PostgresWishlistRepository struct {
	db     *sql.DB
	logger *logrus.Entry
}

func NewPostgresWishlistRepository(db *sql.DB, logger *logrus.Entry) *PostgresWishlistRepository {
	return &PostgresWishlistRepository{db: db, logger: logger}
}

func (r *PostgresWishlistRepository) List(ctx context.Context, userID string) ([]*models.WishlistItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT w.product_id, p.name, p.price, COALESCE(p.image_urls[1], ''), w.created_at
		FROM wishlist_items w
		JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC
	`, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list wishlist", err)
	}
	defer rows.Close()

	items := make([]*models.WishlistItem, 0)
	for rows.Next() {
		var item models.WishlistItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Price, &item.ImageURL, &item.AddedAt); err != nil {
			return nil, apperrors.Internal("failed to read wishlist item", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to read wishlist", err)
	}
	return items, nil
}

func (r *PostgresWishlistRepository) Add(ctx context.Context, userID, productID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wishlist_items (user_id, product_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, product_id) DO NOTHING
	`, userID, productID)
	if isForeignKeyViolation(err) || isInvalidID(err) {
		return apperrors.NotFound("product not found")
	}
	if err != nil {
		return apperrors.Internal("failed to update wishlist", err)
	}
	return nil
}

func (r *PostgresWishlistRepository) Remove(ctx context.Context, userID, productID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if isInvalidID(err) {
		return apperrors.NotFound("product not found")
	}
	if err != nil {
		return apperrors.Internal("failed to update wishlist", err)
	}
	return nil
}

func (r *PostgresWishlistRepository) MoveToCart(ctx context.Context, userID, productID string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Internal("failed to start transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.WithError(rbErr).Error("Failed to roll back wishlist move")
			}
		}
	}()

	result, err := tx.ExecContext(ctx, `DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		if isInvalidID(err) {
			return apperrors.NotFound("wishlist item not found")
		}
		return apperrors.Internal("failed to update wishlist", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Internal("failed to update wishlist", err)
	}
	if n == 0 {
		return apperrors.NotFound("wishlist item not found")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + 1
	`, userID, productID)
	if err != nil {
		return apperrors.Internal("failed to update cart", err)
	}

	if err = tx.Commit(); err != nil {
		return apperrors.Internal("failed to commit wishlist move", err)
	}

	r.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"product_id": productID,
	}).Info("Wishlist item moved to cart")
	return nil
}
