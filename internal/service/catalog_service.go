package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
)

// CatalogService serves the public storefront: products, editorial content,
// newsletter sign-up and the contact form.
type CatalogService struct {
	productRepo    repository.ProductRepository
	contentRepo    repository.ContentRepository
	subscriberRepo repository.SubscriberRepository
	cache          repository.CatalogCache
	mailer         Mailer
	config         *config.Config
	logger         *logrus.Entry
}

func NewCatalogService(
	productRepo repository.ProductRepository,
	contentRepo repository.ContentRepository,
	subscriberRepo repository.SubscriberRepository,
	cache repository.CatalogCache,
	mailer Mailer,
	cfg *config.Config,
	logger *logrus.Entry,
) *CatalogService {
	return &CatalogService{
		productRepo:    productRepo,
		contentRepo:    contentRepo,
		subscriberRepo: subscriberRepo,
		cache:          cache,
		mailer:         mailer,
		config:         cfg,
		logger:         logger,
	}
}

// ListProducts returns one page of published, non-archived products.
func (s *CatalogService) ListProducts(ctx context.Context, filter *models.ProductFilter) (*repository.ProductPage, error) {
	limit, offset, err := NormalizePage(filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	filter.Limit, filter.Offset = limit, offset
	filter.Category = strings.TrimSpace(filter.Category)
	filter.IncludeHidden = false

	if !s.config.Features.EnableCatalogCaching {
		metrics.CatalogCacheRequestsTotal.WithLabelValues(metrics.CacheBypass).Inc()
		return s.loadProducts(ctx, filter)
	}

	page, err := s.cache.GetProducts(ctx, filter)
	switch {
	case err != nil:
		metrics.CatalogCacheRequestsTotal.WithLabelValues(metrics.CacheError).Inc()
		s.logger.WithError(err).Warn("Catalog cache read failed")
	case page != nil:
		metrics.CatalogCacheRequestsTotal.WithLabelValues(metrics.CacheHit).Inc()
		return page, nil
	default:
		metrics.CatalogCacheRequestsTotal.WithLabelValues(metrics.CacheMiss).Inc()
	}

	page, err = s.loadProducts(ctx, filter)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetProducts(ctx, filter, page); err != nil {
		// Log but don't fail
		s.logger.WithError(err).Warn("Catalog cache write failed")
	}
	return page, nil
}

func (s *CatalogService) loadProducts(ctx context.Context, filter *models.ProductFilter) (*repository.ProductPage, error) {
	products, total, err := s.productRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &repository.ProductPage{Products: products, Total: total}, nil
}

// GetProduct returns a product visible on the storefront.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.Purchasable() {
		return nil, apperrors.NotFound("product not found")
	}
	return product, nil
}

func (s *CatalogService) ListContent(ctx context.Context, kind models.ContentKind) ([]*models.ContentItem, error) {
	if !kind.Valid() {
		return nil, apperrors.NotFound("unknown content kind")
	}
	return s.contentRepo.List(ctx, kind, true)
}

func (s *CatalogService) GetContent(ctx context.Context, kind models.ContentKind, slug string) (*models.ContentItem, error) {
	if !kind.Valid() {
		return nil, apperrors.NotFound("unknown content kind")
	}
	return s.contentRepo.GetBySlug(ctx, kind, slug, true)
}

// Subscribe adds an email to the newsletter list.
func (s *CatalogService) Subscribe(ctx context.Context, req *models.SubscribeRequest) (*models.Subscriber, error) {
	email := strings.TrimSpace(req.Email)
	if !validEmail(email) {
		return nil, apperrors.Invalid("email", "email is invalid")
	}

	subscriber, err := s.subscriberRepo.Create(ctx, email)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("subscriber_id", subscriber.ID).Info("Newsletter subscription added")
	return subscriber, nil
}

// Contact forwards a contact form submission to the shop inbox.
func (s *CatalogService) Contact(ctx context.Context, req *models.ContactRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.Invalid("name", "name is required")
	}
	if !validEmail(strings.TrimSpace(req.Email)) {
		return apperrors.Invalid("email", "email is invalid")
	}
	if strings.TrimSpace(req.Message) == "" {
		return apperrors.Invalid("message", "message is required")
	}

	if err := s.mailer.Send(ctx, ContactEmail(s.config.Email.ContactInbox, req)); err != nil {
		s.logger.WithError(err).Error("Failed to send contact email")
		return apperrors.Internal("failed to send message", err)
	}
	return nil
}
