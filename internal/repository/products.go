package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

const productColumns = `id, name, slug, description, price, wattage, category, image_urls, published, archived, created_at, updated_at`

// PostgresProductRepository implements ProductRepository using PostgreSQL.
type PostgresProductRepository struct {
	db     *sql.DB
	logger *logrus.Entry
}

func NewPostgresProductRepository(db *sql.DB, logger *logrus.Entry) *PostgresProductRepository {
	return &PostgresProductRepository{db: db, logger: logger}
}

func (r *PostgresProductRepository) List(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, int, error) {
	r.logger.WithFields(logrus.Fields{
		"category": filter.Category,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	}).Debug("Listing products")

	where := " FROM products WHERE TRUE"
	args := make([]interface{}, 0, 3)

	if !filter.IncludeHidden {
		where += " AND published AND NOT archived"
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where += " AND category = $" + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+where, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.Internal("failed to count products", err)
	}

	query := fmt.Sprintf("SELECT %s%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		productColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.WithError(err).Error("Failed to list products")
		return nil, 0, apperrors.Internal("failed to list products", err)
	}
	defer rows.Close()

	products, err := collectProducts(rows)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetByID returns the product whatever its published or archived flags.
func (r *PostgresProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows || isInvalidID(err) {
		return nil, apperrors.NotFound("product not found")
	}
	if err != nil {
		r.logger.WithError(err).WithField("product_id", id).Error("Failed to fetch product")
		return nil, apperrors.Internal("failed to fetch product", err)
	}
	return p, nil
}

// GetByIDs returns the products found among ids, keyed by the ids as the
// caller spelled them. Malformed ids are skipped so the caller reports them
// as missing.
func (r *PostgresProductRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	// Postgres returns the canonical lowercase form of a uuid.
	requested := make(map[string][]string, len(ids))
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		canonical := parsed.String()
		if _, seen := requested[canonical]; !seen {
			valid = append(valid, canonical)
		}
		requested[canonical] = append(requested[canonical], id)
	}

	out := make(map[string]*models.Product, len(ids))
	if len(valid) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1::uuid[])`, pq.Array(valid))
	if err != nil {
		r.logger.WithError(err).Error("Failed to fetch products by id")
		return nil, apperrors.Internal("failed to fetch products", err)
	}
	defer rows.Close()

	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		for _, id := range requested[p.ID] {
			out[id] = p
		}
	}
	return out, nil
}

func (r *PostgresProductRepository) Create(ctx context.Context, input *models.ProductInput) (*models.Product, error) {
	now := time.Now().UTC()
	p := &models.Product{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Slug:        input.Slug,
		Description: input.Description,
		Price:       input.Price,
		Wattage:     input.Wattage,
		Category:    input.Category,
		ImageURLs:   nonNilStrings(input.ImageURLs),
		Published:   input.Published,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, p.ID, p.Name, p.Slug, p.Description, p.Price, p.Wattage, p.Category,
		pq.Array(p.ImageURLs), p.Published, p.Archived, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, apperrors.Conflict("slug", "a product with this slug already exists")
	}
	if err != nil {
		r.logger.WithError(err).WithField("slug", p.Slug).Error("Failed to create product")
		return nil, apperrors.Internal("failed to create product", err)
	}

	r.logger.WithFields(logrus.Fields{"product_id": p.ID, "slug": p.Slug}).Info("Product created")
	return p, nil
}

func (r *PostgresProductRepository) Update(ctx context.Context, id string, input *models.ProductInput) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, slug = $3, description = $4, price = $5, wattage = $6,
		    category = $7, image_urls = $8, published = $9, updated_at = $10
		WHERE id = $1
		RETURNING `+productColumns,
		id, input.Name, input.Slug, input.Description, input.Price, input.Wattage,
		input.Category, pq.Array(nonNilStrings(input.ImageURLs)), input.Published, time.Now().UTC())

	p, err := scanProduct(row)
	switch {
	case err == sql.ErrNoRows || isInvalidID(err):
		return nil, apperrors.NotFound("product not found")
	case isUniqueViolation(err):
		return nil, apperrors.Conflict("slug", "a product with this slug already exists")
	case err != nil:
		r.logger.WithError(err).WithField("product_id", id).Error("Failed to update product")
		return nil, apperrors.Internal("failed to update product", err)
	}

	r.logger.WithField("product_id", id).Info("Product updated")
	return p, nil
}

func (r *PostgresProductRepository) SetArchived(ctx context.Context, id string, archived bool) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE products SET archived = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+productColumns, id, archived, time.Now().UTC())

	p, err := scanProduct(row)
	if err == sql.ErrNoRows || isInvalidID(err) {
		return nil, apperrors.NotFound("product not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to archive product", err)
	}

	r.logger.WithFields(logrus.Fields{"product_id": id, "archived": archived}).Info("Product archive flag changed")
	return p, nil
}

// Delete removes a product. Products referenced by past orders cannot be
// deleted and must be archived instead.
func (r *PostgresProductRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if isInvalidID(err) {
		return apperrors.NotFound("product not found")
	}
	if isForeignKeyViolation(err) {
		return apperrors.Conflict("id", "product has orders; archive it instead")
	}
	if err != nil {
		r.logger.WithError(err).WithField("product_id", id).Error("Failed to delete product")
		return apperrors.Internal("failed to delete product", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Internal("failed to delete product", err)
	}
	if n == 0 {
		return apperrors.NotFound("product not found")
	}

	r.logger.WithField("product_id", id).Info("Product deleted")
	return nil
}

func collectProducts(rows *sql.Rows) ([]*models.Product, error) {
	products := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, apperrors.Internal("failed to read product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to read products", err)
	}
	return products, nil
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.Price,
		&p.Wattage,
		&p.Category,
		pq.Array(&p.ImageURLs),
		&p.Published,
		&p.Archived,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ImageURLs = nonNilStrings(p.ImageURLs)
	return &p, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
