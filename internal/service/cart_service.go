package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
)

const maxCartQuantity = 999

// CartService manages the signed-in user's cart and wishlist.
type CartService struct {
	cartRepo     repository.CartRepository
	wishlistRepo repository.WishlistRepository
	productRepo  repository.ProductRepository
	logger       *logrus.Entry
}

func NewCartService(
	cartRepo repository.CartRepository,
	wishlistRepo repository.WishlistRepository,
	productRepo repository.ProductRepository,
	logger *logrus.Entry,
) *CartService {
	return &CartService{
		cartRepo:     cartRepo,
		wishlistRepo: wishlistRepo,
		productRepo:  productRepo,
		logger:       logger,
	}
}

func (s *CartService) GetCart(ctx context.Context, userID string) ([]*models.CartItem, error) {
	return s.cartRepo.List(ctx, userID)
}

// AddToCart adds quantity units of a product, one when quantity is zero.
func (s *CartService) AddToCart(ctx context.Context, userID string, req *models.AddCartItemRequest) ([]*models.CartItem, error) {
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 || quantity > maxCartQuantity {
		return nil, apperrors.Invalid("quantity", "quantity must be between 1 and 999")
	}

	if err := s.requirePurchasable(ctx, req.ProductID); err != nil {
		return nil, err
	}

	if err := s.cartRepo.Add(ctx, userID, req.ProductID, quantity); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"product_id": req.ProductID,
		"quantity":   quantity,
	}).Debug("Added to cart")

	return s.cartRepo.List(ctx, userID)
}

// UpdateCartItem sets the quantity of a cart line; zero removes it.
func (s *CartService) UpdateCartItem(ctx context.Context, userID, productID string, quantity int) ([]*models.CartItem, error) {
	if quantity < 0 || quantity > maxCartQuantity {
		return nil, apperrors.Invalid("quantity", "quantity must be between 0 and 999")
	}

	// Removing a line only needs the product to exist, so archived products
	// can still be taken out of a cart.
	check := s.requireExists
	if quantity > 0 {
		check = s.requirePurchasable
	}
	if err := check(ctx, productID); err != nil {
		return nil, err
	}

	if err := s.cartRepo.SetQuantity(ctx, userID, productID, quantity); err != nil {
		return nil, err
	}
	return s.cartRepo.List(ctx, userID)
}

func (s *CartService) RemoveFromCart(ctx context.Context, userID, productID string) ([]*models.CartItem, error) {
	if err := s.requireExists(ctx, productID); err != nil {
		return nil, err
	}
	if err := s.cartRepo.Remove(ctx, userID, productID); err != nil {
		return nil, err
	}
	return s.cartRepo.List(ctx, userID)
}

// SyncCart merges a guest cart into the stored one. Lines naming products
// that are gone or no longer for sale are dropped.
func (s *CartService) SyncCart(ctx context.Context, userID string, req *models.SyncCartRequest) ([]*models.CartItem, error) {
	if len(req.Items) == 0 {
		return s.cartRepo.List(ctx, userID)
	}

	ids := make([]string, 0, len(req.Items))
	for _, line := range req.Items {
		ids = append(ids, line.ProductID)
	}
	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]models.CartLine, 0, len(req.Items))
	for _, line := range req.Items {
		p, ok := products[line.ProductID]
		if !ok || !p.Purchasable() || line.Quantity < 0 {
			s.logger.WithFields(logrus.Fields{
				"user_id":    userID,
				"product_id": line.ProductID,
			}).Debug("Skipping guest cart line")
			continue
		}
		if line.Quantity == 0 {
			line.Quantity = 1
		}
		if line.Quantity > maxCartQuantity {
			line.Quantity = maxCartQuantity
		}
		lines = append(lines, line)
	}

	if len(lines) > 0 {
		if err := s.cartRepo.Merge(ctx, userID, lines); err != nil {
			return nil, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"merged":  len(lines),
		"skipped": len(req.Items) - len(lines),
	}).Info("Guest cart synced")

	return s.cartRepo.List(ctx, userID)
}

func (s *CartService) GetWishlist(ctx context.Context, userID string) ([]*models.WishlistItem, error) {
	return s.wishlistRepo.List(ctx, userID)
}

func (s *CartService) AddToWishlist(ctx context.Context, userID, productID string) ([]*models.WishlistItem, error) {
	if err := s.requirePurchasable(ctx, productID); err != nil {
		return nil, err
	}
	if err := s.wishlistRepo.Add(ctx, userID, productID); err != nil {
		return nil, err
	}
	return s.wishlistRepo.List(ctx, userID)
}

func (s *CartService) RemoveFromWishlist(ctx context.Context, userID, productID string) ([]*models.WishlistItem, error) {
	if err := s.requireExists(ctx, productID); err != nil {
		return nil, err
	}
	if err := s.wishlistRepo.Remove(ctx, userID, productID); err != nil {
		return nil, err
	}
	return s.wishlistRepo.List(ctx, userID)
}

// MoveToCart moves a wishlist product into the cart as one unit.
func (s *CartService) MoveToCart(ctx context.Context, userID, productID string) ([]*models.CartItem, error) {
	if err := s.requirePurchasable(ctx, productID); err != nil {
		return nil, err
	}
	if err := s.wishlistRepo.MoveToCart(ctx, userID, productID); err != nil {
		return nil, err
	}
	return s.cartRepo.List(ctx, userID)
}

func (s *CartService) requireExists(ctx context.Context, productID string) error {
	_, err := s.lookupProduct(ctx, productID)
	return err
}

func (s *CartService) requirePurchasable(ctx context.Context, productID string) error {
	product, err := s.lookupProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !product.Purchasable() {
		return apperrors.NotFound("product not found")
	}
	return nil
}

func (s *CartService) lookupProduct(ctx context.Context, productID string) (*models.Product, error) {
	if productID == "" {
		return nil, apperrors.Invalid("product_id", "product ID is required")
	}
	return s.productRepo.GetByID(ctx, productID)
}
