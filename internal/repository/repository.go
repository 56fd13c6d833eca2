package repository

import (
	"context"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// OrderRepository persists orders and their line items.
type OrderRepository interface {
	// Create inserts the order and all of its items in one transaction.
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByReference(ctx context.Context, reference string) (*models.Order, error)
	// MarkPaid moves a pending_verification order to paid. It reports false
	// when the order exists but was not pending.
	MarkPaid(ctx context.Context, id string) (bool, error)
	// UpdateStatus changes status only if the row still has status from.
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) (*models.Order, error)
	List(ctx context.Context, filter *models.OrderListFilter) ([]*models.Order, int, error)
	Stats(ctx context.Context) (*models.OrderStats, error)
}

type ProductRepository interface {
	List(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, int, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error)
	Create(ctx context.Context, input *models.ProductInput) (*models.Product, error)
	Update(ctx context.Context, id string, input *models.ProductInput) (*models.Product, error)
	SetArchived(ctx context.Context, id string, archived bool) (*models.Product, error)
	Delete(ctx context.Context, id string) error
}

type CartRepository interface {
	List(ctx context.Context, userID string) ([]*models.CartItem, error)
	// Add increments the quantity, creating the row when absent.
	Add(ctx context.Context, userID, productID string, quantity int) error
	// SetQuantity stores quantity; zero deletes the row.
	SetQuantity(ctx context.Context, userID, productID string, quantity int) error
	Remove(ctx context.Context, userID, productID string) error
	// Merge upserts lines keeping the larger of the stored and given quantity.
	Merge(ctx context.Context, userID string, lines []models.CartLine) error
	RemoveProducts(ctx context.Context, userID string, productIDs []string) error
}

type WishlistRepository interface {
	List(ctx context.Context, userID string) ([]*models.WishlistItem, error)
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
	// MoveToCart removes the wishlist row and adds one unit to the cart atomically.
	MoveToCart(ctx context.Context, userID, productID string) error
}

type ContentRepository interface {
	List(ctx context.Context, kind models.ContentKind, publishedOnly bool) ([]*models.ContentItem, error)
	GetBySlug(ctx context.Context, kind models.ContentKind, slug string, publishedOnly bool) (*models.ContentItem, error)
	Create(ctx context.Context, kind models.ContentKind, input *models.ContentInput) (*models.ContentItem, error)
	Update(ctx context.Context, kind models.ContentKind, id string, input *models.ContentInput) (*models.ContentItem, error)
	Delete(ctx context.Context, kind models.ContentKind, id string) error
}

type SubscriberRepository interface {
	Create(ctx context.Context, email string) (*models.Subscriber, error)
	List(ctx context.Context, limit, offset int) ([]*models.Subscriber, int, error)
}

type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SaveResetToken(ctx context.Context, token *models.PasswordResetToken) error
	// ConsumeResetToken deletes the token and returns its user id when it
	// exists and has not expired.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error)
}

// CatalogCache caches published product listings.
type CatalogCache interface {
	GetProducts(ctx context.Context, filter *models.ProductFilter) (*ProductPage, error)
	SetProducts(ctx context.Context, filter *models.ProductFilter, page *ProductPage) error
	InvalidateProducts(ctx context.Context) error
}

// DedupStore claims one-shot keys so repeated deliveries are processed once.
type DedupStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// ProductPage is one cached page of a product listing.
type ProductPage struct {
	Products []*models.Product `json:"products"`
	Total    int               `json:"total"`
}

var (
	_ OrderRepository      = (*PostgresOrderRepository)(nil)
	_ ProductRepository    = (*PostgresProductRepository)(nil)
	_ CartRepository       = (*PostgresCartRepository)(nil)
	_ WishlistRepository   = (*PostgresWishlistRepository)(nil)
	_ ContentRepository    = (*PostgresContentRepository)(nil)
	_ SubscriberRepository = (*PostgresSubscriberRepository)(nil)
	_ UserRepository       = (*PostgresUserRepository)(nil)
	_ CatalogCache         = (*RedisCatalogCache)(nil)
	_ DedupStore           = (*RedisDedupStore)(nil)
)
