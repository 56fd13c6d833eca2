package service

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

type adminFixture struct {
	svc      *AdminService
	products *fakeProductRepo
	content  *fakeContentRepo
	cache    *fakeCatalogCache
	storage  *clients.MockStorage
}

func newAdminFixture() *adminFixture {
	f := &adminFixture{
		products: newFakeProductRepo(publishedProduct("p1", 1000)),
		content:  &fakeContentRepo{},
		cache:    newFakeCatalogCache(),
		storage:  clients.NewMockStorage(),
	}
	f.svc = NewAdminService(f.products, f.content, &fakeSubscriberRepo{}, f.cache, f.storage, logging.Discard())
	return f
}

func productInput(slug string) *models.ProductInput {
	return &models.ProductInput{
		Name:      "Inverter 5kVA",
		Slug:      slug,
		Price:     decimal.NewFromInt(450000),
		Wattage:   5000,
		Category:  "inverters",
		Published: true,
	}
}

func TestAdminService_ProductLifecycle(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()

	product, err := f.svc.CreateProduct(ctx, productInput("inverter-5kva"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.invalidated)

	_, err = f.svc.CreateProduct(ctx, productInput("inverter-5kva"))
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	archived, err := f.svc.SetProductArchived(ctx, product.ID, true)
	require.NoError(t, err)
	assert.True(t, archived.Archived)
	assert.Equal(t, 2, f.cache.invalidated)

	page, err := f.svc.ListProducts(ctx, &models.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	require.NoError(t, f.svc.DeleteProduct(ctx, product.ID))
	assert.Equal(t, 3, f.cache.invalidated)
}

func TestAdminService_ProductValidation(t *testing.T) {
	tests := []struct {
		name  string
		input *models.ProductInput
		field string
	}{
		{"bad slug", productInput("Inverter 5kVA"), "slug"},
		{"zero price", func() *models.ProductInput {
			in := productInput("ok-slug")
			in.Price = decimal.Zero
			return in
		}(), "price"},
		{"blank name", func() *models.ProductInput {
			in := productInput("ok-slug")
			in.Name = "  "
			return in
		}(), "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdminFixture()

			_, err := f.svc.CreateProduct(context.Background(), tt.input)

			var appErr *apperrors.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
			assert.Equal(t, 0, f.cache.invalidated)
		})
	}
}

func TestAdminService_Content(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()

	item, err := f.svc.CreateContent(ctx, models.ContentProjects, &models.ContentInput{Slug: "ikeja-school", Title: "Ikeja school"})
	require.NoError(t, err)

	items, err := f.svc.ListContent(ctx, models.ContentProjects)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = f.svc.CreateContent(ctx, models.ContentKind("orders"), &models.ContentInput{Slug: "x", Title: "x"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	require.NoError(t, f.svc.DeleteContent(ctx, models.ContentProjects, item.ID))
	assert.Empty(t, f.content.items)
}

func TestAdminService_UploadMedia(t *testing.T) {
	f := newAdminFixture()
	ctx := context.Background()
	data := "fake-png-bytes"

	upload, err := f.svc.UploadMedia(ctx, "products", "Panel Front.PNG", strings.NewReader(data), int64(len(data)), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(upload.Path, "products/"))
	assert.True(t, strings.HasSuffix(upload.Path, "-panel-front.png"))
	assert.Contains(t, upload.URL, upload.Path)
	assert.Len(t, f.storage.Objects, 1)

	name := strings.TrimPrefix(upload.Path, "products/")
	require.NoError(t, f.svc.DeleteMedia(ctx, "products", name))
	assert.Empty(t, f.storage.Objects)
}

func TestAdminService_UploadMediaRejections(t *testing.T) {
	tests := []struct {
		name        string
		folder      string
		size        int64
		contentType string
	}{
		{"unknown folder", "secrets", 10, "image/png"},
		{"empty file", "products", 0, "image/png"},
		{"too large", "products", MaxUploadSize + 1, "image/png"},
		{"not an image", "articles", 10, "application/x-sh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAdminFixture()

			_, err := f.svc.UploadMedia(context.Background(), tt.folder, "f.png", strings.NewReader("x"), tt.size, tt.contentType)

			assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidRequest))
			assert.Empty(t, f.storage.Objects)
		})
	}
}

func TestAdminService_DeleteMediaRejectsTraversal(t *testing.T) {
	f := newAdminFixture()

	err := f.svc.DeleteMedia(context.Background(), "products", "../config.yaml")

	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidRequest))
}

func TestAdminService_ListSubscribers(t *testing.T) {
	subs := &fakeSubscriberRepo{subscribers: []*models.Subscriber{{ID: "s1", Email: "a@example.com"}}}
	svc := NewAdminService(newFakeProductRepo(), &fakeContentRepo{}, subs, newFakeCatalogCache(), clients.NewMockStorage(), logging.Discard())

	got, total, err := svc.ListSubscribers(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, got, 1)

	_, _, err = svc.ListSubscribers(context.Background(), -1, 0)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidRequest))
}
