package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
)

const webhookClaimTTL = 24 * time.Hour

// PaymentService handles payment initialization and reconciliation.
type PaymentService struct {
	gateway        PaymentGateway
	orderRepo      repository.OrderRepository
	dedup          repository.DedupStore
	eventPublisher EventPublisher
	config         *config.Config
	logger         *logrus.Entry
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	gateway PaymentGateway,
	orderRepo repository.OrderRepository,
	dedup repository.DedupStore,
	eventPublisher EventPublisher,
	cfg *config.Config,
	logger *logrus.Entry,
) *PaymentService {
	return &PaymentService{
		gateway:        gateway,
		orderRepo:      orderRepo,
		dedup:          dedup,
		eventPublisher: eventPublisher,
		config:         cfg,
		logger:         logger,
	}
}

// NewPaymentReference returns a fresh gateway reference.
func NewPaymentReference() string {
	return "SOL-" + uuid.NewString()
}

// InitializePayment starts a Paystack transaction. When an order is named,
// its reference and total are used and its id travels in the metadata so the
// webhook can find it.
func (s *PaymentService) InitializePayment(ctx context.Context, userID string, req *models.InitializePaymentRequest) (*models.PaymentInitialization, error) {
	s.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"order_id": req.OrderID,
		"amount":   req.Amount.String(),
	}).Debug("Initializing payment")

	if !req.Amount.IsPositive() {
		return nil, apperrors.Invalid("amount", "amount must be positive")
	}

	metadata := make(map[string]interface{}, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	reference := NewPaymentReference()
	if req.OrderID != "" {
		order, err := s.orderRepo.GetByID(ctx, req.OrderID)
		if err != nil {
			return nil, err
		}
		if order.UserID != userID {
			return nil, apperrors.NotFound("order not found")
		}
		if order.Status != models.OrderStatusPendingVerification {
			return nil, apperrors.Conflict("order_id", "order is not awaiting payment")
		}
		if ToMinorUnits(req.Amount) != ToMinorUnits(order.TotalPrice) {
			return nil, apperrors.Invalid("amount", "amount does not match order total")
		}
		reference = order.PaystackReference
		metadata["db_order_id"] = order.ID
	}

	result, err := s.gateway.Initialize(ctx, &clients.InitializeTransaction{
		Email:       req.Email,
		Amount:      ToMinorUnits(req.Amount),
		Currency:    s.config.Paystack.Currency,
		Reference:   reference,
		CallbackURL: s.config.Paystack.CallbackURL,
		Metadata:    metadata,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"order_id":  req.OrderID,
			"reference": reference,
		}).Error("Payment initialization failed")
		return nil, apperrors.Internal("payment initialization failed", err)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":  req.OrderID,
		"reference": result.Reference,
	}).Info("Payment initialized")

	return result, nil
}

// VerifyPayment asks the gateway for the state of a transaction. It never
// mutates orders; the webhook owns that.
func (s *PaymentService) VerifyPayment(ctx context.Context, reference string) (*models.PaymentVerification, error) {
	if reference == "" {
		return nil, apperrors.Invalid("reference", "reference is required")
	}

	verification, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		s.logger.WithError(err).WithField("reference", reference).Error("Payment verification failed")
		return nil, apperrors.Internal("payment verification failed", err)
	}
	return verification, nil
}

// HandleWebhook authenticates and applies a Paystack event. It returns the
// outcome recorded in metrics.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	outcome, err := s.handleWebhook(ctx, payload, signature)
	metrics.PaymentWebhooksTotal.WithLabelValues(outcome).Inc()
	return outcome, err
}

func (s *PaymentService) handleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	if !s.gateway.ValidateWebhook(payload, signature) {
		s.logger.Warn("Rejected webhook with invalid signature")
		return metrics.WebhookBadSignature, apperrors.Invalid("signature", "invalid signature")
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return metrics.WebhookFailed, apperrors.Invalid("body", "malformed event payload")
	}

	logger := s.logger.WithFields(logrus.Fields{
		"event":     event.Event,
		"reference": event.Data.Reference,
		"order_id":  event.Data.Metadata.DBOrderID,
	})

	if event.Event != models.PaystackEventChargeSuccess {
		logger.Debug("Ignoring webhook event")
		return metrics.WebhookIgnored, nil
	}

	key := webhookClaimKey(&event)
	if key == "" {
		// Nothing identifies the payment; rely on the conditional update alone.
		return s.settle(ctx, logger, &event)
	}

	claimed, err := s.dedup.Claim(ctx, key, webhookClaimTTL)
	if err != nil {
		// Fall through to the conditional update, which is idempotent on its own.
		logger.WithError(err).Warn("Webhook dedup unavailable")
		claimed = true
	}
	if !claimed {
		logger.Info("Duplicate webhook delivery")
		return metrics.WebhookDuplicate, nil
	}

	outcome, err := s.settle(ctx, logger, &event)
	if err != nil {
		if releaseErr := s.dedup.Release(ctx, key); releaseErr != nil {
			logger.WithError(releaseErr).Warn("Failed to release webhook claim")
		}
	}
	return outcome, err
}

// webhookClaimKey names one payment: its reference, else the Paystack
// transaction id, else the order it settles. Empty when none is present.
func webhookClaimKey(event *models.WebhookEvent) string {
	prefix := "paystack:" + event.Event + ":"
	switch {
	case event.Data.Reference != "":
		return prefix + "ref:" + event.Data.Reference
	case event.Data.ID != 0:
		return prefix + "txn:" + strconv.FormatInt(event.Data.ID, 10)
	case event.Data.Metadata.DBOrderID != "":
		return prefix + "order:" + event.Data.Metadata.DBOrderID
	}
	return ""
}

func (s *PaymentService) settle(ctx context.Context, logger *logrus.Entry, event *models.WebhookEvent) (string, error) {
	order, err := s.resolveOrder(ctx, &event.Data)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			logger.Warn("Webhook for unknown order")
			return metrics.WebhookUnknownOrder, err
		}
		logger.WithError(err).Error("Failed to load order for webhook")
		return metrics.WebhookFailed, err
	}

	if event.Data.Amount > 0 && event.Data.Amount != ToMinorUnits(order.TotalPrice) {
		logger.WithFields(logrus.Fields{
			"paid":     event.Data.Amount,
			"expected": ToMinorUnits(order.TotalPrice),
		}).Error("Webhook amount does not match order total")
		return metrics.WebhookAmountMismatch, apperrors.Invalid("amount", "amount does not match order total")
	}

	transitioned, err := s.orderRepo.MarkPaid(ctx, order.ID)
	if err != nil {
		logger.WithError(err).Error("Failed to mark order paid")
		return metrics.WebhookFailed, err
	}
	if !transitioned {
		logger.WithField("status", order.Status).Info("Order already settled")
		return metrics.WebhookDuplicate, nil
	}

	order.Status = models.OrderStatusPaid
	logger.WithField("order_id", order.ID).Info("Order marked paid")

	if s.config.Features.EnableOrderEvents {
		if err := s.eventPublisher.PublishOrderPaid(ctx, order); err != nil {
			logger.WithError(err).Error("Failed to publish order paid event")
		}
	}
	return metrics.WebhookPaid, nil
}

func (s *PaymentService) resolveOrder(ctx context.Context, data *models.WebhookData) (*models.Order, error) {
	if data.Metadata.DBOrderID != "" {
		return s.orderRepo.GetByID(ctx, data.Metadata.DBOrderID)
	}
	if data.Reference == "" {
		return nil, apperrors.NotFound("order not found")
	}
	return s.orderRepo.GetByReference(ctx, data.Reference)
}
