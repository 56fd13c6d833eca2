package service

import (
	"context"
	"io"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// PaymentGateway is the payment provider as the services see it.
type PaymentGateway interface {
	Initialize(ctx context.Context, req *clients.InitializeTransaction) (*models.PaymentInitialization, error)
	Verify(ctx context.Context, reference string) (*models.PaymentVerification, error)
	ValidateWebhook(payload []byte, signature string) bool
}

type Mailer interface {
	Send(ctx context.Context, email *clients.Email) error
}

type MediaStore interface {
	Upload(ctx context.Context, folder, filename string, r io.Reader, size int64, contentType string) (objectPath, url string, err error)
	Remove(ctx context.Context, objectPath string) error
}

// EventPublisher emits order lifecycle events.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishOrderPaid(ctx context.Context, order *models.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error
}

var (
	_ PaymentGateway = (*clients.PaystackClient)(nil)
	_ PaymentGateway = (*clients.MockPaymentGateway)(nil)
	_ Mailer         = (*clients.HTTPMailer)(nil)
	_ Mailer         = (*clients.MockMailer)(nil)
	_ MediaStore     = (*clients.MinioStorage)(nil)
	_ MediaStore     = (*clients.MockStorage)(nil)
)
