package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices go over the wire as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type OrderStatus string

const (
	OrderStatusPendingVerification OrderStatus = "pending_verification"
	OrderStatusPaid                OrderStatus = "paid"
	OrderStatusProcessing          OrderStatus = "processing"
	OrderStatusShipped             OrderStatus = "shipped"
	OrderStatusDelivered           OrderStatus = "delivered"
	OrderStatusCancelled           OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPendingVerification,
	OrderStatusPaid,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsSettled reports whether the order has been paid for, whatever its
// fulfilment stage.
func (s OrderStatus) IsSettled() bool {
	switch s {
	case OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

// ShippingAddress is stored as a JSONB column on the order row.
type ShippingAddress struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (a ShippingAddress) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *ShippingAddress) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*a = ShippingAddress{}
		return nil
	default:
		return errors.New("shipping_address: unsupported column type")
	}
	return json.Unmarshal(data, a)
}

type Order struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	Status            OrderStatus     `json:"status"`
	ShippingAddress   ShippingAddress `json:"shipping_address"`
	PaystackReference string          `json:"paystack_reference"`
	Items             []OrderItem     `json:"items,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ItemsTotal sums price_at_purchase × quantity over the order's items.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

type OrderItem struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CheckoutItem is one cart line as submitted by the client. Price is the
// price the client displayed; the server re-reads it from the catalog.
type CheckoutItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type CheckoutRequest struct {
	Items     []CheckoutItem   `json:"items"`
	Shipping  *ShippingAddress `json:"shipping"`
	Total     decimal.Decimal  `json:"total"`
	Reference string           `json:"reference"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

type OrderListFilter struct {
	UserID string
	Status *OrderStatus
	Limit  int
	Offset int
}

// OrderStats backs the admin dashboard.
type OrderStats struct {
	CountByStatus map[OrderStatus]int `json:"count_by_status"`
	TotalOrders   int                 `json:"total_orders"`
	PaidRevenue   decimal.Decimal     `json:"paid_revenue"`
}
