package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

type orderFixture struct {
	svc       *OrderService
	orders    *fakeOrderRepo
	products  *fakeProductRepo
	cart      *fakeCartRepo
	publisher *fakePublisher
}

func newOrderFixture(products ...*models.Product) *orderFixture {
	f := &orderFixture{
		orders:    newFakeOrderRepo(),
		products:  newFakeProductRepo(products...),
		cart:      newFakeCartRepo(),
		publisher: &fakePublisher{},
	}
	f.svc = NewOrderService(f.orders, f.products, f.cart, f.publisher, testConfig(), logging.Discard())
	return f
}

func checkoutRequest(total int64, items ...models.CheckoutItem) *models.CheckoutRequest {
	return &models.CheckoutRequest{
		Items: items,
		Shipping: &models.ShippingAddress{
			Name:    "Ada Obi",
			Email:   "ada@example.com",
			Phone:   "+2348000000000",
			Address: "12 Marina, Lagos",
		},
		Total:     decimal.NewFromInt(total),
		Reference: "SOL-ref-1",
	}
}

func TestOrderService_Checkout(t *testing.T) {
	f := newOrderFixture(publishedProduct("p1", 1000), publishedProduct("p2", 50))
	ctx := context.Background()
	require.NoError(t, f.cart.Add(ctx, "user-1", "p1", 2))
	require.NoError(t, f.cart.Add(ctx, "user-1", "p2", 1))

	order, err := f.svc.Checkout(ctx, "user-1", checkoutRequest(2000,
		models.CheckoutItem{ProductID: "p1", Quantity: 2, Price: decimal.NewFromInt(1000)},
	))

	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.OrderStatusPendingVerification, order.Status)
	assert.True(t, decimal.NewFromInt(2000).Equal(order.TotalPrice))
	require.Len(t, order.Items, 1)
	assert.Equal(t, order.ID, order.Items[0].OrderID)
	assert.True(t, order.TotalPrice.Equal(order.ItemsTotal()))

	cart, err := f.cart.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, "p2", cart[0].ProductID)

	assert.Len(t, f.publisher.created, 1)
}

func TestOrderService_CheckoutRejections(t *testing.T) {
	archived := publishedProduct("p3", 10)
	archived.Archived = true

	tests := []struct {
		name  string
		user  string
		req   *models.CheckoutRequest
		kind  apperrors.Kind
		field string
	}{
		{
			name:  "empty cart",
			user:  "user-1",
			req:   checkoutRequest(100),
			kind:  apperrors.KindInvalidRequest,
			field: "items",
		},
		{
			name: "missing shipping",
			user: "user-1",
			req: func() *models.CheckoutRequest {
				r := checkoutRequest(1000, models.CheckoutItem{ProductID: "p1", Quantity: 1})
				r.Shipping = nil
				return r
			}(),
			kind:  apperrors.KindInvalidRequest,
			field: "shipping",
		},
		{
			name: "missing reference",
			user: "user-1",
			req: func() *models.CheckoutRequest {
				r := checkoutRequest(1000, models.CheckoutItem{ProductID: "p1", Quantity: 1})
				r.Reference = ""
				return r
			}(),
			kind:  apperrors.KindInvalidRequest,
			field: "reference",
		},
		{
			name:  "zero quantity",
			user:  "user-1",
			req:   checkoutRequest(1000, models.CheckoutItem{ProductID: "p1", Quantity: 0}),
			kind:  apperrors.KindInvalidRequest,
			field: "items",
		},
		{
			name:  "total mismatch",
			user:  "user-1",
			req:   checkoutRequest(999, models.CheckoutItem{ProductID: "p1", Quantity: 1}),
			kind:  apperrors.KindInvalidRequest,
			field: "total",
		},
		{
			name: "unknown product",
			user: "user-1",
			req:  checkoutRequest(1000, models.CheckoutItem{ProductID: "nope", Quantity: 1}),
			kind: apperrors.KindNotFound,
		},
		{
			name: "archived product",
			user: "user-1",
			req:  checkoutRequest(10, models.CheckoutItem{ProductID: "p3", Quantity: 1}),
			kind: apperrors.KindNotFound,
		},
		{
			name: "no session",
			user: "",
			req:  checkoutRequest(1000, models.CheckoutItem{ProductID: "p1", Quantity: 1}),
			kind: apperrors.KindUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture(publishedProduct("p1", 1000), archived)

			order, err := f.svc.Checkout(context.Background(), tt.user, tt.req)

			require.Error(t, err)
			assert.Nil(t, order)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
			if tt.field != "" {
				var appErr *apperrors.Error
				require.True(t, errors.As(err, &appErr))
				assert.Equal(t, tt.field, appErr.Field)
			}
			assert.Equal(t, 0, f.orders.count())
			assert.Empty(t, f.publisher.created)
		})
	}
}

func TestOrderService_CheckoutMergesRepeatedLines(t *testing.T) {
	f := newOrderFixture(publishedProduct("p1", 250))

	order, err := f.svc.Checkout(context.Background(), "user-1", checkoutRequest(750,
		models.CheckoutItem{ProductID: "p1", Quantity: 1},
		models.CheckoutItem{ProductID: "p1", Quantity: 2},
	))

	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)
}

func TestOrderService_CheckoutDuplicateReference(t *testing.T) {
	f := newOrderFixture(publishedProduct("p1", 1000))
	ctx := context.Background()
	req := checkoutRequest(1000, models.CheckoutItem{ProductID: "p1", Quantity: 1})

	_, err := f.svc.Checkout(ctx, "user-1", req)
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, "user-1", req)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
	assert.Equal(t, 1, f.orders.count())
}

func TestOrderService_CheckoutSideEffectsAreBestEffort(t *testing.T) {
	f := newOrderFixture(publishedProduct("p1", 1000))
	f.cart.removeErr = errors.New("cart store down")
	f.publisher.err = errors.New("broker down")

	order, err := f.svc.Checkout(context.Background(), "user-1",
		checkoutRequest(1000, models.CheckoutItem{ProductID: "p1", Quantity: 1}))

	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, 1, f.orders.count())
}

func TestOrderService_CheckoutEventsDisabled(t *testing.T) {
	f := newOrderFixture(publishedProduct("p1", 1000))
	f.svc.config.Features.EnableOrderEvents = false

	_, err := f.svc.Checkout(context.Background(), "user-1",
		checkoutRequest(1000, models.CheckoutItem{ProductID: "p1", Quantity: 1}))

	require.NoError(t, err)
	assert.Empty(t, f.publisher.created)
}

func TestOrderService_GetUserOrder(t *testing.T) {
	f := newOrderFixture()
	f.orders.put(&models.Order{ID: "o1", UserID: "user-1", Status: models.OrderStatusPaid})
	ctx := context.Background()

	order, err := f.svc.GetUserOrder(ctx, "user-1", "o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", order.ID)

	_, err = f.svc.GetUserOrder(ctx, "user-2", "o1")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestOrderService_ListUserOrders(t *testing.T) {
	f := newOrderFixture()
	f.orders.put(&models.Order{ID: "o1", UserID: "user-1"})
	f.orders.put(&models.Order{ID: "o2", UserID: "user-2"})

	orders, total, err := f.svc.ListUserOrders(context.Background(), "user-1", 0, 0)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].ID)

	_, _, err = f.svc.ListUserOrders(context.Background(), "user-1", -1, 0)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidRequest))
}

func TestOrderService_UpdateOrderStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    models.OrderStatus
		to      models.OrderStatus
		wantErr bool
	}{
		{"paid to processing", models.OrderStatusPaid, models.OrderStatusProcessing, false},
		{"processing to shipped", models.OrderStatusProcessing, models.OrderStatusShipped, false},
		{"shipped to delivered", models.OrderStatusShipped, models.OrderStatusDelivered, false},
		{"pending to cancelled", models.OrderStatusPendingVerification, models.OrderStatusCancelled, false},
		{"pending to paid is webhook only", models.OrderStatusPendingVerification, models.OrderStatusPaid, true},
		{"delivered is terminal", models.OrderStatusDelivered, models.OrderStatusCancelled, true},
		{"cancelled is terminal", models.OrderStatusCancelled, models.OrderStatusProcessing, true},
		{"no skipping", models.OrderStatusPaid, models.OrderStatusDelivered, true},
		{"unknown status", models.OrderStatusPaid, models.OrderStatus("lost"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture()
			f.orders.put(&models.Order{ID: "o1", UserID: "user-1", Status: tt.from})

			order, err := f.svc.UpdateOrderStatus(context.Background(), "o1", &models.UpdateOrderStatusRequest{Status: tt.to})

			if tt.wantErr {
				assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidRequest))
				stored, _ := f.orders.GetByID(context.Background(), "o1")
				assert.Equal(t, tt.from, stored.Status)
				assert.Empty(t, f.publisher.changed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, order.Status)
			assert.Equal(t, []models.OrderStatus{tt.from}, f.publisher.changed)
		})
	}
}

func TestOrderService_Stats(t *testing.T) {
	f := newOrderFixture()
	f.orders.put(&models.Order{ID: "o1", Status: models.OrderStatusPaid, TotalPrice: decimal.NewFromInt(2000)})
	f.orders.put(&models.Order{ID: "o2", Status: models.OrderStatusShipped, TotalPrice: decimal.NewFromInt(500)})
	f.orders.put(&models.Order{ID: "o3", Status: models.OrderStatusPendingVerification, TotalPrice: decimal.NewFromInt(900)})

	stats, err := f.svc.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalOrders)
	assert.Equal(t, 1, stats.CountByStatus[models.OrderStatusPaid])
	assert.True(t, decimal.NewFromInt(2500).Equal(stats.PaidRevenue))
}

func TestPriceItems(t *testing.T) {
	products := map[string]*models.Product{
		"a": publishedProduct("a", 1000),
		"b": {ID: "b", Price: decimal.RequireFromString("12.50")},
	}

	items, total := PriceItems([]models.CheckoutItem{
		{ProductID: "a", Quantity: 2, Price: decimal.NewFromInt(1)},
		{ProductID: "b", Quantity: 3},
	}, products)

	require.Len(t, items, 2)
	assert.True(t, decimal.NewFromInt(1000).Equal(items[0].PriceAtPurchase))
	assert.True(t, decimal.RequireFromString("2037.50").Equal(total))
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(200000), ToMinorUnits(decimal.NewFromInt(2000)))
	assert.Equal(t, int64(1251), ToMinorUnits(decimal.RequireFromString("12.505")))
	assert.True(t, decimal.RequireFromString("12.51").Equal(FromMinorUnits(1251)))
}
