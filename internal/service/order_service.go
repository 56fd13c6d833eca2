package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
)

// OrderService handles checkout and order management.
type OrderService struct {
	orderRepo      repository.OrderRepository
	productRepo    repository.ProductRepository
	cartRepo       repository.CartRepository
	eventPublisher EventPublisher
	config         *config.Config
	logger         *logrus.Entry
}

// NewOrderService creates a new order service.
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	cartRepo repository.CartRepository,
	eventPublisher EventPublisher,
	cfg *config.Config,
	logger *logrus.Entry,
) *OrderService {
	return &OrderService{
		orderRepo:      orderRepo,
		productRepo:    productRepo,
		cartRepo:       cartRepo,
		eventPublisher: eventPublisher,
		config:         cfg,
		logger:         logger,
	}
}

// Checkout turns a cart snapshot into a pending_verification order. Items are
// priced from the catalog, and the submitted total must match that price.
func (s *OrderService) Checkout(ctx context.Context, userID string, req *models.CheckoutRequest) (*models.Order, error) {
	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"item_count": len(req.Items),
		"reference":  req.Reference,
	}).Info("Checkout started")

	order, err := s.checkout(ctx, userID, req)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindInternal {
			metrics.CheckoutOrdersTotal.WithLabelValues(metrics.CheckoutFailed).Inc()
		} else {
			metrics.CheckoutOrdersTotal.WithLabelValues(metrics.CheckoutRejected).Inc()
		}
		return nil, err
	}
	metrics.CheckoutOrdersTotal.WithLabelValues(metrics.CheckoutCreated).Inc()

	productIDs := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	if err := s.cartRepo.RemoveProducts(ctx, userID, productIDs); err != nil {
		// Log but don't fail
		s.logger.WithError(err).WithField("order_id", order.ID).Error("Failed to clear cart after checkout")
	}

	if s.config.Features.EnableOrderEvents {
		if err := s.eventPublisher.PublishOrderCreated(ctx, order); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Error("Failed to publish order created event")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"total":    order.TotalPrice.String(),
	}).Info("Order created successfully")

	return order, nil
}

func (s *OrderService) checkout(ctx context.Context, userID string, req *models.CheckoutRequest) (*models.Order, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if err := ValidateCheckoutRequest(req); err != nil {
		return nil, err
	}

	lines := mergeCheckoutLines(req.Items)
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		p, ok := products[id]
		if !ok || !p.Purchasable() {
			return nil, apperrors.NotFound(fmt.Sprintf("product %s not found", id))
		}
	}

	items, total := PriceItems(lines, products)
	if !total.Equal(req.Total) {
		s.logger.WithFields(logrus.Fields{
			"user_id":   userID,
			"submitted": req.Total.String(),
			"computed":  total.String(),
		}).Warn("Checkout total mismatch")
		return nil, apperrors.Invalid("total", "total does not match current prices")
	}

	order := &models.Order{
		UserID:            userID,
		TotalPrice:        total,
		ShippingAddress:   *req.Shipping,
		PaystackReference: req.Reference,
		Items:             items,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("Failed to create order")
		return nil, err
	}
	return order, nil
}

// GetUserOrder returns one of the caller's own orders.
func (s *OrderService) GetUserOrder(ctx context.Context, userID, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.NotFound("order not found")
	}
	return order, nil
}

// ListUserOrders retrieves the caller's orders, newest first.
func (s *OrderService) ListUserOrders(ctx context.Context, userID string, limit, offset int) ([]*models.Order, int, error) {
	limit, offset, err := NormalizePage(limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return s.orderRepo.List(ctx, &models.OrderListFilter{UserID: userID, Limit: limit, Offset: offset})
}

// GetOrder retrieves any order by ID.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	s.logger.WithField("order_id", id).Debug("Getting order")
	return s.orderRepo.GetByID(ctx, id)
}

// ListOrders retrieves orders based on filter criteria.
func (s *OrderService) ListOrders(ctx context.Context, filter *models.OrderListFilter) ([]*models.Order, int, error) {
	limit, offset, err := NormalizePage(filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	filter.Limit, filter.Offset = limit, offset

	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, apperrors.Invalid("status", "invalid order status")
	}

	return s.orderRepo.List(ctx, filter)
}

// UpdateOrderStatus applies an admin status change.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, req *models.UpdateOrderStatusRequest) (*models.Order, error) {
	s.logger.WithFields(logrus.Fields{
		"order_id":   id,
		"new_status": req.Status,
	}).Info("Updating order status")

	if err := ValidateStatusUpdate(req); err != nil {
		return nil, err
	}

	current, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !isValidStatusTransition(current.Status, req.Status) {
		return nil, apperrors.Invalid("status", fmt.Sprintf(
			"invalid status transition from %s to %s",
			current.Status,
			req.Status,
		))
	}

	previousStatus := current.Status

	order, err := s.orderRepo.UpdateStatus(ctx, id, previousStatus, req.Status)
	if err != nil {
		return nil, err
	}

	if s.config.Features.EnableOrderEvents {
		if err := s.eventPublisher.PublishOrderStatusChanged(ctx, order, previousStatus); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Error("Failed to publish status change event")
		}
	}

	return order, nil
}

// Stats returns the dashboard figures.
func (s *OrderService) Stats(ctx context.Context) (*models.OrderStats, error) {
	return s.orderRepo.Stats(ctx)
}

// Orders become paid only through the payment webhook, so no admin
// transition leads to paid.
var validTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPendingVerification: {models.OrderStatusCancelled},
	models.OrderStatusPaid:                {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing:          {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:             {models.OrderStatusDelivered},
	models.OrderStatusDelivered:           {},
	models.OrderStatusCancelled:           {},
}

func isValidStatusTransition(from, to models.OrderStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == to {
			return true
		}
	}
	return false
}
