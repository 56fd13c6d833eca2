package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is a cart row joined with the product fields the cart page shows.
type CartItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url,omitempty"`
	AddedAt   time.Time       `json:"added_at"`
}

type WishlistItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url,omitempty"`
	AddedAt   time.Time       `json:"added_at"`
}

type AddCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// CartLine is a bare (product, quantity) pair, used for guest cart merges.
type CartLine struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type SyncCartRequest struct {
	Items []CartLine `json:"items"`
}

type AddWishlistItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
}
