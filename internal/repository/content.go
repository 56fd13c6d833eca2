package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

const contentColumns = `id, slug, title, summary, body, image_url, published, created_at, updated_at`

// PostgresContentRepository serves the editorial tables. All six share one
// column layout, so the kind selects the table.
type PostgresContentRepository struct {
	db     *sql.DB
	logger *logrus.Entry
}

func NewPostgresContentRepository(db *sql.DB, logger *logrus.Entry) *PostgresContentRepository {
	return &PostgresContentRepository{db: db, logger: logger}
}

func tableFor(kind models.ContentKind) (string, error) {
	if !kind.Valid() {
		return "", apperrors.NotFound(fmt.Sprintf("unknown content kind %q", kind))
	}
	return string(kind), nil
}

func (r *PostgresContentRepository) List(ctx context.Context, kind models.ContentKind, publishedOnly bool) ([]*models.ContentItem, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + contentColumns + ` FROM ` + table
	if publishedOnly {
		query += ` WHERE published`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.WithError(err).WithField("kind", kind).Error("Failed to list content")
		return nil, apperrors.Internal("failed to list content", err)
	}
	defer rows.Close()

	items := make([]*models.ContentItem, 0)
	for rows.Next() {
		item, err := scanContent(rows, kind)
		if err != nil {
			return nil, apperrors.Internal("failed to read content", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to read content", err)
	}
	return items, nil
}

func (r *PostgresContentRepository) GetBySlug(ctx context.Context, kind models.ContentKind, slug string, publishedOnly bool) (*models.ContentItem, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + contentColumns + ` FROM ` + table + ` WHERE slug = $1`
	if publishedOnly {
		query += ` AND published`
	}

	item, err := scanContent(r.db.QueryRowContext(ctx, query, slug), kind)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("content not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to fetch content", err)
	}
	return item, nil
}

func (r *PostgresContentRepository) Create(ctx context.Context, kind models.ContentKind, input *models.ContentInput) (*models.ContentItem, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO `+table+` (`+contentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING `+contentColumns,
		uuid.NewString(), input.Slug, input.Title, input.Summary, input.Body, input.ImageURL, input.Published, now)

	item, err := scanContent(row, kind)
	if isUniqueViolation(err) {
		return nil, apperrors.Conflict("slug", "content with this slug already exists")
	}
	if err != nil {
		r.logger.WithError(err).WithField("kind", kind).Error("Failed to create content")
		return nil, apperrors.Internal("failed to create content", err)
	}

	r.logger.WithFields(logrus.Fields{"kind": kind, "id": item.ID}).Info("Content created")
	return item, nil
}

func (r *PostgresContentRepository) Update(ctx context.Context, kind models.ContentKind, id string, input *models.ContentInput) (*models.ContentItem, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE `+table+`
		SET slug = $2, title = $3, summary = $4, body = $5, image_url = $6, published = $7, updated_at = $8
		WHERE id = $1
		RETURNING `+contentColumns,
		id, input.Slug, input.Title, input.Summary, input.Body, input.ImageURL, input.Published, time.Now().UTC())

	item, err := scanContent(row, kind)
	switch {
	case err == sql.ErrNoRows || isInvalidID(err):
		return nil, apperrors.NotFound("content not found")
	case isUniqueViolation(err):
		return nil, apperrors.Conflict("slug", "content with this slug already exists")
	case err != nil:
		return nil, apperrors.Internal("failed to update content", err)
	}

	r.logger.WithFields(logrus.Fields{"kind": kind, "id": id}).Info("Content updated")
	return item, nil
}

func (r *PostgresContentRepository) Delete(ctx context.Context, kind models.ContentKind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if isInvalidID(err) {
		return apperrors.NotFound("content not found")
	}
	if err != nil {
		return apperrors.Internal("failed to delete content", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Internal("failed to delete content", err)
	}
	if n == 0 {
		return apperrors.NotFound("content not found")
	}

	r.logger.WithFields(logrus.Fields{"kind": kind, "id": id}).Info("Content deleted")
	return nil
}

func scanContent(row rowScanner, kind models.ContentKind) (*models.ContentItem, error) {
	item := models.ContentItem{Kind: kind}
	err := row.Scan(
		&item.ID,
		&item.Slug,
		&item.Title,
		&item.Summary,
		&item.Body,
		&item.ImageURL,
		&item.Published,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
