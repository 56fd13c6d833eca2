package service

import (
	"net/mail"
	"strings"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	minPasswordLen  = 8
)

// ValidateCheckoutRequest validates a checkout submission.
func ValidateCheckoutRequest(req *models.CheckoutRequest) error {
	if len(req.Items) == 0 {
		return apperrors.Invalid("items", "cart is empty")
	}

	for _, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return apperrors.Invalid("items", "product ID is required for item")
		}
		if item.Quantity <= 0 {
			return apperrors.Invalid("items", "quantity must be positive")
		}
	}

	if req.Shipping == nil {
		return apperrors.Invalid("shipping", "shipping details are required")
	}
	if err := validateShipping(req.Shipping); err != nil {
		return err
	}

	if !req.Total.IsPositive() {
		return apperrors.Invalid("total", "total must be positive")
	}

	if strings.TrimSpace(req.Reference) == "" {
		return apperrors.Invalid("reference", "payment reference is required")
	}

	return nil
}

func validateShipping(s *models.ShippingAddress) error {
	if strings.TrimSpace(s.Name) == "" {
		return apperrors.Invalid("shipping", "name is required")
	}
	if strings.TrimSpace(s.Phone) == "" {
		return apperrors.Invalid("shipping", "phone is required")
	}
	if strings.TrimSpace(s.Address) == "" {
		return apperrors.Invalid("shipping", "address is required")
	}
	if s.Email != "" && !validEmail(s.Email) {
		return apperrors.Invalid("shipping", "email is invalid")
	}
	return nil
}

// mergeCheckoutLines folds repeated products into one line.
func mergeCheckoutLines(lines []models.CheckoutItem) []models.CheckoutItem {
	index := make(map[string]int, len(lines))
	out := make([]models.CheckoutItem, 0, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out
}

// ValidateStatusUpdate checks the requested status is a known one.
func ValidateStatusUpdate(req *models.UpdateOrderStatusRequest) error {
	if req.Status == "" {
		return apperrors.Invalid("status", "status is required")
	}
	if !req.Status.Valid() {
		return apperrors.Invalid("status", "invalid order status")
	}
	return nil
}

// NormalizePage clamps paging parameters.
func NormalizePage(limit, offset int) (int, int, error) {
	if limit < 0 {
		return 0, 0, apperrors.Invalid("limit", "limit cannot be negative")
	}
	if offset < 0 {
		return 0, 0, apperrors.Invalid("offset", "offset cannot be negative")
	}
	if limit == 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return limit, offset, nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == strings.TrimSpace(s)
}

func ValidatePassword(password string) error {
	if len(password) < minPasswordLen {
		return apperrors.Invalid("password", "password must be at least 8 characters")
	}
	return nil
}
