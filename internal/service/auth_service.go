package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
)

// AuthService implements the password reset flow. Sign-in itself belongs to
// the identity provider.
type AuthService struct {
	userRepo repository.UserRepository
	mailer   Mailer
	config   *config.Config
	logger   *logrus.Entry
	now      func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, mailer Mailer, cfg *config.Config, logger *logrus.Entry) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		mailer:   mailer,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// ForgotPassword emails a reset link when the address belongs to a user. The
// caller gets the same answer either way.
func (s *AuthService) ForgotPassword(ctx context.Context, req *models.ForgotPasswordRequest) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			s.logger.Debug("Password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return apperrors.Internal("failed to create reset token", err)
	}

	if err := s.userRepo.SaveResetToken(ctx, &models.PasswordResetToken{
		TokenHash: HashResetToken(token),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.config.Auth.ResetTTL),
	}); err != nil {
		return err
	}

	link := strings.TrimRight(s.config.Server.PublicURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
	if err := s.mailer.Send(ctx, PasswordResetEmail(user.Email, link)); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("Failed to send password reset email")
		return nil
	}

	s.logger.WithField("user_id", user.ID).Info("Password reset email sent")
	return nil
}

// ResetPassword consumes a reset token and stores the new password hash.
func (s *AuthService) ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) error {
	if strings.TrimSpace(req.Token) == "" {
		return apperrors.Invalid("token", "token is required")
	}
	if err := ValidatePassword(req.Password); err != nil {
		return err
	}

	userID, err := s.userRepo.ConsumeResetToken(ctx, HashResetToken(req.Token), s.now())
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Internal("failed to hash password", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}

	s.logger.WithField("user_id", userID).Info("Password reset completed")
	return nil
}

// HashResetToken is the form in which reset tokens are stored.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
