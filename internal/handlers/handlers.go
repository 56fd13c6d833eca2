package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/service"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Handlers holds all HTTP handlers for the storefront service.
type Handlers struct {
	orderService   *service.OrderService
	paymentService *service.PaymentService
	cartService    *service.CartService
	catalogService *service.CatalogService
	adminService   *service.AdminService
	authService    *service.AuthService
	checks         map[string]HealthCheck
	config         *config.Config
	logger         *logrus.Entry
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	orderService *service.OrderService,
	paymentService *service.PaymentService,
	cartService *service.CartService,
	catalogService *service.CatalogService,
	adminService *service.AdminService,
	authService *service.AuthService,
	cfg *config.Config,
	logger *logrus.Entry,
) *Handlers {
	return &Handlers{
		orderService:   orderService,
		paymentService: paymentService,
		cartService:    cartService,
		catalogService: catalogService,
		adminService:   adminService,
		authService:    authService,
		checks:         make(map[string]HealthCheck),
		config:         cfg,
		logger:         logger,
	}
}

// AddReadinessCheck registers a dependency checked by /ready.
func (h *Handlers) AddReadinessCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// userID returns the session user. Routes behind RequireSession always have one.
func userID(c *gin.Context) string {
	if p := middleware.PrincipalFrom(c); p != nil {
		return p.UserID
	}
	return ""
}

func bindJSON(c *gin.Context, h *Handlers, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.WithError(err).WithField("path", c.FullPath()).Debug("Failed to bind request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	return true
}

// pageParams reads limit and offset query parameters.
func pageParams(c *gin.Context) (int, int, error) {
	limit, err := intQuery(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	offset, err := intQuery(c, "offset")
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Invalid(name, "must be an integer")
	}
	return n, nil
}

var statusByKind = map[apperrors.Kind]int{
	apperrors.KindUnauthorized:   http.StatusUnauthorized,
	apperrors.KindForbidden:      http.StatusForbidden,
	apperrors.KindInvalidRequest: http.StatusBadRequest,
	apperrors.KindNotFound:       http.StatusNotFound,
	apperrors.KindConflict:       http.StatusConflict,
}

// handleError writes the response for a service error. Internal details are
// logged and never returned.
func (h *Handlers) handleError(c *gin.Context, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		if status, ok := statusByKind[appErr.Kind]; ok {
			body := gin.H{"error": appErr.Message}
			if appErr.Field != "" {
				body["field"] = appErr.Field
			}
			c.JSON(status, body)
			return
		}
	}

	h.logger.WithError(err).WithFields(logrus.Fields{
		"path":       c.FullPath(),
		"request_id": middleware.RequestIDFromContext(c.Request.Context()),
	}).Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
