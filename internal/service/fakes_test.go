package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{PublicURL: "https://shop.example.test"},
		Paystack: config.PaystackConfig{Currency: "NGN", CallbackURL: "https://shop.example.test/checkout/callback"},
		Email:    config.EmailConfig{ContactInbox: "sales@shop.example.test"},
		Auth:     config.AuthConfig{ResetTTL: time.Hour},
		Features: config.FeatureFlags{EnableOrderEvents: true, EnableCatalogCaching: true},
	}
}

type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*models.Order
	createErr error
	markCalls int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*models.Order)}
}

func (r *fakeOrderRepo) put(order *models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
}

func (r *fakeOrderRepo) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, o := range r.orders {
		if o.PaystackReference == order.PaystackReference {
			return apperrors.Conflict("reference", "payment reference already used")
		}
	}
	order.ID = uuid.NewString()
	order.Status = models.OrderStatusPendingVerification
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Items {
		order.Items[i].ID = uuid.NewString()
		order.Items[i].OrderID = order.ID
	}
	stored := *order
	r.orders[order.ID] = &stored
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order not found")
	}
	copied := *o
	return &copied, nil
}

func (r *fakeOrderRepo) GetByReference(ctx context.Context, reference string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.PaystackReference == reference {
			copied := *o
			return &copied, nil
		}
	}
	return nil, apperrors.NotFound("order not found")
}

func (r *fakeOrderRepo) MarkPaid(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markCalls++
	o, ok := r.orders[id]
	if !ok {
		return false, apperrors.NotFound("order not found")
	}
	if o.Status != models.OrderStatusPendingVerification {
		return false, nil
	}
	o.Status = models.OrderStatusPaid
	return true, nil
}

func (r *fakeOrderRepo) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order not found")
	}
	if o.Status != from {
		return nil, apperrors.Conflict("status", "order status changed concurrently")
	}
	o.Status = to
	copied := *o
	return &copied, nil
}

func (r *fakeOrderRepo) List(ctx context.Context, filter *models.OrderListFilter) ([]*models.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Order, 0)
	for _, o := range r.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if filter.Offset >= len(out) {
		return []*models.Order{}, total, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (r *fakeOrderRepo) Stats(ctx context.Context) (*models.OrderStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &models.OrderStats{CountByStatus: make(map[models.OrderStatus]int), PaidRevenue: decimal.Zero}
	for _, o := range r.orders {
		stats.CountByStatus[o.Status]++
		stats.TotalOrders++
		if o.Status.IsSettled() {
			stats.PaidRevenue = stats.PaidRevenue.Add(o.TotalPrice)
		}
	}
	return stats, nil
}

func (r *fakeOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type fakeProductRepo struct {
	products map[string]*models.Product
	listed   int
}

func newFakeProductRepo(products ...*models.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: make(map[string]*models.Product)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) List(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, int, error) {
	r.listed++
	out := make([]*models.Product, 0)
	for _, p := range r.products {
		if !filter.IncludeHidden && !p.Purchasable() {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *fakeProductRepo) GetByID(ctx context.Context, id string) (*models.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.NotFound("product not found")
	}
	return p, nil
}

func (r *fakeProductRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	out := make(map[string]*models.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r *fakeProductRepo) Create(ctx context.Context, input *models.ProductInput) (*models.Product, error) {
	for _, p := range r.products {
		if p.Slug == input.Slug {
			return nil, apperrors.Conflict("slug", "slug already exists")
		}
	}
	p := &models.Product{
		ID:        uuid.NewString(),
		Name:      input.Name,
		Slug:      input.Slug,
		Price:     input.Price,
		Wattage:   input.Wattage,
		Category:  input.Category,
		Published: input.Published,
	}
	r.products[p.ID] = p
	return p, nil
}

func (r *fakeProductRepo) Update(ctx context.Context, id string, input *models.ProductInput) (*models.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.NotFound("product not found")
	}
	p.Name, p.Slug, p.Price, p.Published = input.Name, input.Slug, input.Price, input.Published
	return p, nil
}

func (r *fakeProductRepo) SetArchived(ctx context.Context, id string, archived bool) (*models.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.NotFound("product not found")
	}
	p.Archived = archived
	return p, nil
}

func (r *fakeProductRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.products[id]; !ok {
		return apperrors.NotFound("product not found")
	}
	delete(r.products, id)
	return nil
}

type fakeCartRepo struct {
	lines     map[string]map[string]int
	removeErr error
}

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{lines: make(map[string]map[string]int)}
}

func (r *fakeCartRepo) user(userID string) map[string]int {
	if r.lines[userID] == nil {
		r.lines[userID] = make(map[string]int)
	}
	return r.lines[userID]
}

func (r *fakeCartRepo) List(ctx context.Context, userID string) ([]*models.CartItem, error) {
	out := make([]*models.CartItem, 0)
	for productID, qty := range r.lines[userID] {
		out = append(out, &models.CartItem{ProductID: productID, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *fakeCartRepo) Add(ctx context.Context, userID, productID string, quantity int) error {
	r.user(userID)[productID] += quantity
	return nil
}

func (r *fakeCartRepo) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity == 0 {
		delete(r.user(userID), productID)
		return nil
	}
	r.user(userID)[productID] = quantity
	return nil
}

func (r *fakeCartRepo) Remove(ctx context.Context, userID, productID string) error {
	delete(r.user(userID), productID)
	return nil
}

func (r *fakeCartRepo) Merge(ctx context.Context, userID string, lines []models.CartLine) error {
	cart := r.user(userID)
	for _, l := range lines {
		if l.Quantity > cart[l.ProductID] {
			cart[l.ProductID] = l.Quantity
		}
	}
	return nil
}

func (r *fakeCartRepo) RemoveProducts(ctx context.Context, userID string, productIDs []string) error {
	if r.removeErr != nil {
		return r.removeErr
	}
	for _, id := range productIDs {
		delete(r.user(userID), id)
	}
	return nil
}

type fakeWishlistRepo struct {
	cart  *fakeCartRepo
	items map[string]map[string]bool
}

func newFakeWishlistRepo(cart *fakeCartRepo) *fakeWishlistRepo {
	return &fakeWishlistRepo{cart: cart, items: make(map[string]map[string]bool)}
}

func (r *fakeWishlistRepo) List(ctx context.Context, userID string) ([]*models.WishlistItem, error) {
	out := make([]*models.WishlistItem, 0)
	for productID := range r.items[userID] {
		out = append(out, &models.WishlistItem{ProductID: productID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (r *fakeWishlistRepo) Add(ctx context.Context, userID, productID string) error {
	if r.items[userID] == nil {
		r.items[userID] = make(map[string]bool)
	}
	r.items[userID][productID] = true
	return nil
}

func (r *fakeWishlistRepo) Remove(ctx context.Context, userID, productID string) error {
	delete(r.items[userID], productID)
	return nil
}

func (r *fakeWishlistRepo) MoveToCart(ctx context.Context, userID, productID string) error {
	if !r.items[userID][productID] {
		return apperrors.NotFound("wishlist item not found")
	}
	delete(r.items[userID], productID)
	r.cart.user(userID)[productID]++
	return nil
}

type fakeContentRepo struct {
	items []*models.ContentItem
}

func (r *fakeContentRepo) List(ctx context.Context, kind models.ContentKind, publishedOnly bool) ([]*models.ContentItem, error) {
	out := make([]*models.ContentItem, 0)
	for _, item := range r.items {
		if item.Kind == kind && (!publishedOnly || item.Published) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *fakeContentRepo) GetBySlug(ctx context.Context, kind models.ContentKind, slug string, publishedOnly bool) (*models.ContentItem, error) {
	for _, item := range r.items {
		if item.Kind == kind && item.Slug == slug && (!publishedOnly || item.Published) {
			return item, nil
		}
	}
	return nil, apperrors.NotFound("content not found")
}

func (r *fakeContentRepo) Create(ctx context.Context, kind models.ContentKind, input *models.ContentInput) (*models.ContentItem, error) {
	item := &models.ContentItem{ID: uuid.NewString(), Kind: kind, Slug: input.Slug, Title: input.Title, Published: input.Published}
	r.items = append(r.items, item)
	return item, nil
}

func (r *fakeContentRepo) Update(ctx context.Context, kind models.ContentKind, id string, input *models.ContentInput) (*models.ContentItem, error) {
	for _, item := range r.items {
		if item.Kind == kind && item.ID == id {
			item.Slug, item.Title, item.Published = input.Slug, input.Title, input.Published
			return item, nil
		}
	}
	return nil, apperrors.NotFound("content not found")
}

func (r *fakeContentRepo) Delete(ctx context.Context, kind models.ContentKind, id string) error {
	for i, item := range r.items {
		if item.Kind == kind && item.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return apperrors.NotFound("content not found")
}

type fakeSubscriberRepo struct {
	subscribers []*models.Subscriber
}

func (r *fakeSubscriberRepo) Create(ctx context.Context, email string) (*models.Subscriber, error) {
	for _, s := range r.subscribers {
		if s.Email == email {
			return nil, apperrors.Conflict("email", "already subscribed")
		}
	}
	s := &models.Subscriber{ID: uuid.NewString(), Email: email}
	r.subscribers = append(r.subscribers, s)
	return s, nil
}

func (r *fakeSubscriberRepo) List(ctx context.Context, limit, offset int) ([]*models.Subscriber, int, error) {
	return r.subscribers, len(r.subscribers), nil
}

type fakeUserRepo struct {
	users     map[string]*models.User
	tokens    map[string]*models.PasswordResetToken
	passwords map[string]string
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{
		users:     make(map[string]*models.User),
		tokens:    make(map[string]*models.PasswordResetToken),
		passwords: make(map[string]string),
	}
	for _, u := range users {
		r.users[u.Email] = u
	}
	return r
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := r.users[email]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	return u, nil
}

func (r *fakeUserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	r.passwords[userID] = passwordHash
	return nil
}

func (r *fakeUserRepo) SaveResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	r.tokens[token.TokenHash] = token
	return nil
}

func (r *fakeUserRepo) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	t, ok := r.tokens[tokenHash]
	if !ok {
		return "", apperrors.Invalid("token", "reset token is invalid or has expired")
	}
	delete(r.tokens, tokenHash)
	if !now.Before(t.ExpiresAt) {
		return "", apperrors.Invalid("token", "reset token is invalid or has expired")
	}
	return t.UserID, nil
}

type fakeCatalogCache struct {
	pages       map[string]*repository.ProductPage
	getErr      error
	invalidated int
}

func newFakeCatalogCache() *fakeCatalogCache {
	return &fakeCatalogCache{pages: make(map[string]*repository.ProductPage)}
}

func cacheKey(f *models.ProductFilter) string {
	return f.Category + "|" + strconv.Itoa(f.Limit) + "|" + strconv.Itoa(f.Offset)
}

func (c *fakeCatalogCache) GetProducts(ctx context.Context, filter *models.ProductFilter) (*repository.ProductPage, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.pages[cacheKey(filter)], nil
}

func (c *fakeCatalogCache) SetProducts(ctx context.Context, filter *models.ProductFilter, page *repository.ProductPage) error {
	c.pages[cacheKey(filter)] = page
	return nil
}

func (c *fakeCatalogCache) InvalidateProducts(ctx context.Context) error {
	c.invalidated++
	c.pages = make(map[string]*repository.ProductPage)
	return nil
}

type fakeDedupStore struct {
	mu       sync.Mutex
	keys     map[string]bool
	claimErr error
}

func newFakeDedupStore() *fakeDedupStore {
	return &fakeDedupStore{keys: make(map[string]bool)}
}

func (d *fakeDedupStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.claimErr != nil {
		return false, d.claimErr
	}
	if d.keys[key] {
		return false, nil
	}
	d.keys[key] = true
	return true, nil
}

func (d *fakeDedupStore) Release(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}

type fakePublisher struct {
	mu      sync.Mutex
	created []*models.Order
	paid    []*models.Order
	changed []models.OrderStatus
	err     error
}

func (p *fakePublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, order)
	return p.err
}

func (p *fakePublisher) PublishOrderPaid(ctx context.Context, order *models.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid = append(p.paid, order)
	return p.err
}

func (p *fakePublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, previousStatus)
	return p.err
}

func (p *fakePublisher) paidCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.paid)
}

func publishedProduct(id string, price int64) *models.Product {
	return &models.Product{
		ID:        id,
		Name:      "Panel " + id,
		Slug:      "panel-" + id,
		Price:     decimal.NewFromInt(price),
		Category:  "panels",
		Published: true,
	}
}
