package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

type PostgresUserRepository struct {
	db     *sql.DB
	logger *logrus.Entry
}

func NewPostgresUserRepository(db *sql.DB, logger *logrus.Entry) *PostgresUserRepository {
	return &PostgresUserRepository{db: db, logger: logger}
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at
		FROM users
		WHERE lower(email) = $1
	`, strings.ToLower(strings.TrimSpace(email))).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("user not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to fetch user", err)
	}
	return &u, nil
}

func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return apperrors.Internal("failed to update password", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Internal("failed to update password", err)
	}
	if n == 0 {
		return apperrors.NotFound("user not found")
	}

	r.logger.WithField("user_id", userID).Info("Password updated")
	return nil
}

// SaveResetToken replaces any outstanding token for the user.
func (r *PostgresUserRepository) SaveResetToken(ctx context.Context, token *models.PasswordResetToken) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Internal("failed to start transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, token.UserID); err != nil {
		return apperrors.Internal("failed to store reset token", err)
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token.TokenHash, token.UserID, token.ExpiresAt); err != nil {
		return apperrors.Internal("failed to store reset token", err)
	}
	if err = tx.Commit(); err != nil {
		return apperrors.Internal("failed to store reset token", err)
	}
	return nil
}

// ConsumeResetToken deletes the token in the same statement that checks it,
// so a token can be used at most once.
func (r *PostgresUserRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	var userID string
	var expiresAt time.Time
	err := r.db.QueryRowContext(ctx, `
		DELETE FROM password_reset_tokens
		WHERE token_hash = $1
		RETURNING user_id, expires_at
	`, tokenHash).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.Invalid("token", "reset token is invalid or has expired")
	}
	if err != nil {
		return "", apperrors.Internal("failed to verify reset token", err)
	}
	if !now.Before(expiresAt) {
		return "", apperrors.Invalid("token", "reset token is invalid or has expired")
	}
	return userID, nil
}

// PostgresSubscriberRepository stores newsletter subscribers.
type PostgresSubscriberRepository struct {
	db     *sql.DB
	logger *logrus.Entry
}

func NewPostgresSubscriberRepository(db *sql.DB, logger *logrus.Entry) *PostgresSubscriberRepository {
	return &PostgresSubscriberRepository{db: db, logger: logger}
}

func (r *PostgresSubscriberRepository) Create(ctx context.Context, email string) (*models.Subscriber, error) {
	s := &models.Subscriber{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO subscribers (id, email, created_at) VALUES ($1, $2, $3)`,
		s.ID, s.Email, s.CreatedAt)
	if isUniqueViolation(err) {
		return nil, apperrors.Conflict("email", "this email is already subscribed")
	}
	if err != nil {
		r.logger.WithError(err).Error("Failed to create subscriber")
		return nil, apperrors.Internal("failed to subscribe", err)
	}

	r.logger.WithField("subscriber_id", s.ID).Info("Subscriber added")
	return s, nil
}

func (r *PostgresSubscriberRepository) List(ctx context.Context, limit, offset int) ([]*models.Subscriber, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&total); err != nil {
		return nil, 0, apperrors.Internal("failed to count subscribers", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, created_at FROM subscribers
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to list subscribers", err)
	}
	defer rows.Close()

	subs := make([]*models.Subscriber, 0)
	for rows.Next() {
		var s models.Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.CreatedAt); err != nil {
			return nil, 0, apperrors.Internal("failed to read subscriber", err)
		}
		subs = append(subs, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.Internal("failed to read subscribers", err)
	}
	return subs, total, nil
}
