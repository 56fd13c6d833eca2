package service

import (
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
)

// MaxUploadSize bounds a single media upload.
const MaxUploadSize = 10 << 20

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	mediaFolders = map[string]bool{
		"products": true,
		"articles": true,
		"services": true,
		"projects": true,
	}
)

// MediaUpload is the result of storing one file.
type MediaUpload struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// AdminService implements the back-office writes.
type AdminService struct {
	productRepo    repository.ProductRepository
	contentRepo    repository.ContentRepository
	subscriberRepo repository.SubscriberRepository
	cache          repository.CatalogCache
	media          MediaStore
	logger         *logrus.Entry
}

func NewAdminService(
	productRepo repository.ProductRepository,
	contentRepo repository.ContentRepository,
	subscriberRepo repository.SubscriberRepository,
	cache repository.CatalogCache,
	media MediaStore,
	logger *logrus.Entry,
) *AdminService {
	return &AdminService{
		productRepo:    productRepo,
		contentRepo:    contentRepo,
		subscriberRepo: subscriberRepo,
		cache:          cache,
		media:          media,
		logger:         logger,
	}
}

// ListProducts returns every product including drafts and archived ones.
func (s *AdminService) ListProducts(ctx context.Context, filter *models.ProductFilter) (*repository.ProductPage, error) {
	limit, offset, err := NormalizePage(filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	filter.Limit, filter.Offset = limit, offset
	filter.IncludeHidden = true

	products, total, err := s.productRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &repository.ProductPage{Products: products, Total: total}, nil
}

func (s *AdminService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.productRepo.GetByID(ctx, id)
}

func (s *AdminService) CreateProduct(ctx context.Context, input *models.ProductInput) (*models.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	product, err := s.productRepo.Create(ctx, input)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"product_id": product.ID,
		"slug":       product.Slug,
	}).Info("Product created")
	s.invalidateCatalog(ctx)
	return product, nil
}

func (s *AdminService) UpdateProduct(ctx context.Context, id string, input *models.ProductInput) (*models.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	product, err := s.productRepo.Update(ctx, id, input)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("product_id", id).Info("Product updated")
	s.invalidateCatalog(ctx)
	return product, nil
}

// SetProductArchived hides or restores a product without touching order history.
func (s *AdminService) SetProductArchived(ctx context.Context, id string, archived bool) (*models.Product, error) {
	product, err := s.productRepo.SetArchived(ctx, id, archived)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"product_id": id,
		"archived":   archived,
	}).Info("Product archive flag changed")
	s.invalidateCatalog(ctx)
	return product, nil
}

func (s *AdminService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("product_id", id).Info("Product deleted")
	s.invalidateCatalog(ctx)
	return nil
}

func (s *AdminService) invalidateCatalog(ctx context.Context) {
	if err := s.cache.InvalidateProducts(ctx); err != nil {
		// Entries still expire with the TTL.
		s.logger.WithError(err).Warn("Failed to invalidate catalog cache")
	}
}

// ListContent returns every item of a kind, drafts included.
func (s *AdminService) ListContent(ctx context.Context, kind models.ContentKind) ([]*models.ContentItem, error) {
	if !kind.Valid() {
		return nil, apperrors.NotFound("unknown content kind")
	}
	return s.contentRepo.List(ctx, kind, false)
}

func (s *AdminService) CreateContent(ctx context.Context, kind models.ContentKind, input *models.ContentInput) (*models.ContentItem, error) {
	if !kind.Valid() {
		return nil, apperrors.NotFound("unknown content kind")
	}
	if err := validateContentInput(input); err != nil {
		return nil, err
	}

	item, err := s.contentRepo.Create(ctx, kind, input)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"kind":    kind,
		"item_id": item.ID,
	}).Info("Content created")
	return item, nil
}

func (s *AdminService) UpdateContent(ctx context.Context, kind models.ContentKind, id string, input *models.ContentInput) (*models.ContentItem, error) {
	if !kind.Valid() {
		return nil, apperrors.NotFound("unknown content kind")
	}
	if err := validateContentInput(input); err != nil {
		return nil, err
	}
	return s.contentRepo.Update(ctx, kind, id, input)
}

func (s *AdminService) DeleteContent(ctx context.Context, kind models.ContentKind, id string) error {
	if !kind.Valid() {
		return apperrors.NotFound("unknown content kind")
	}
	if err := s.contentRepo.Delete(ctx, kind, id); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"kind":    kind,
		"item_id": id,
	}).Info("Content deleted")
	return nil
}

// UploadMedia stores an image under one of the fixed media folders.
func (s *AdminService) UploadMedia(ctx context.Context, folder, filename string, r io.Reader, size int64, contentType string) (*MediaUpload, error) {
	if !mediaFolders[folder] {
		return nil, apperrors.Invalid("folder", "unknown media folder")
	}
	if size <= 0 {
		return nil, apperrors.Invalid("file", "file is empty")
	}
	if size > MaxUploadSize {
		return nil, apperrors.Invalid("file", "file exceeds 10MB")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperrors.Invalid("file", "only images can be uploaded")
	}

	objectPath, url, err := s.media.Upload(ctx, folder, filename, r, size, contentType)
	if err != nil {
		s.logger.WithError(err).WithField("folder", folder).Error("Media upload failed")
		return nil, apperrors.Internal("media upload failed", err)
	}

	s.logger.WithFields(logrus.Fields{
		"path": objectPath,
		"size": size,
	}).Info("Media uploaded")
	return &MediaUpload{Path: objectPath, URL: url}, nil
}

// DeleteMedia removes an object previously returned by UploadMedia.
func (s *AdminService) DeleteMedia(ctx context.Context, folder, name string) error {
	if !mediaFolders[folder] {
		return apperrors.Invalid("folder", "unknown media folder")
	}
	name = strings.TrimPrefix(name, "/")
	if name == "" || strings.Contains(name, "..") || strings.Contains(name, "/") {
		return apperrors.Invalid("path", "invalid media path")
	}

	objectPath := folder + "/" + name
	if err := s.media.Remove(ctx, objectPath); err != nil {
		s.logger.WithError(err).WithField("path", objectPath).Error("Media delete failed")
		return apperrors.Internal("media delete failed", err)
	}
	return nil
}

func (s *AdminService) ListSubscribers(ctx context.Context, limit, offset int) ([]*models.Subscriber, int, error) {
	limit, offset, err := NormalizePage(limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return s.subscriberRepo.List(ctx, limit, offset)
}

func validateProductInput(input *models.ProductInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return apperrors.Invalid("name", "name is required")
	}
	if !slugPattern.MatchString(input.Slug) {
		return apperrors.Invalid("slug", "slug must be lowercase words separated by hyphens")
	}
	if !input.Price.IsPositive() {
		return apperrors.Invalid("price", "price must be positive")
	}
	if input.Wattage < 0 {
		return apperrors.Invalid("wattage", "wattage cannot be negative")
	}
	return nil
}

func validateContentInput(input *models.ContentInput) error {
	if !slugPattern.MatchString(input.Slug) {
		return apperrors.Invalid("slug", "slug must be lowercase words separated by hyphens")
	}
	if strings.TrimSpace(input.Title) == "" {
		return apperrors.Invalid("title", "title is required")
	}
	return nil
}
