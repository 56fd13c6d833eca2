package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Wattage     int             `json:"wattage"`
	Category    string          `json:"category"`
	ImageURLs   []string        `json:"image_urls"`
	Published   bool            `json:"published"`
	Archived    bool            `json:"archived"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Purchasable reports whether the product can be added to a cart or order.
func (p *Product) Purchasable() bool {
	return p.Published && !p.Archived
}

// ProductInput is the admin create/update payload.
type ProductInput struct {
	Name        string          `json:"name" binding:"required"`
	Slug        string          `json:"slug" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Wattage     int             `json:"wattage" binding:"min=0"`
	Category    string          `json:"category"`
	ImageURLs   []string        `json:"image_urls"`
	Published   bool            `json:"published"`
}

type ProductFilter struct {
	Category string
	Limit    int
	Offset   int
	// IncludeHidden also returns unpublished and archived rows (admin only).
	IncludeHidden bool
}
