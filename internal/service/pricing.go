package service

import (
	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

var minorUnitsPerMajor = decimal.NewFromInt(100)

// ToMinorUnits converts an amount in naira to kobo, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitsPerMajor).Round(0).IntPart()
}

// FromMinorUnits converts kobo back to naira.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// PriceItems snapshots each line at the catalog price and returns the lines
// with their total. Lines must already be validated and deduplicated.
func PriceItems(lines []models.CheckoutItem, products map[string]*models.Product) ([]models.OrderItem, decimal.Decimal) {
	items := make([]models.OrderItem, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		item := models.OrderItem{
			ProductID:       line.ProductID,
			Quantity:        line.Quantity,
			PriceAtPurchase: products[line.ProductID].Price,
		}
		total = total.Add(item.LineTotal())
		items = append(items, item)
	}
	return items, total
}
