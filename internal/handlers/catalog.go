package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// ListProducts handles GET /api/products
func (h *Handlers) ListProducts(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	page, err := h.catalogService.ListProducts(c.Request.Context(), &models.ProductFilter{
		Category: c.Query("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetProduct handles GET /api/products/:id
func (h *Handlers) GetProduct(c *gin.Context) {
	product, err := h.catalogService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// ListContent handles GET /api/content/:kind
func (h *Handlers) ListContent(c *gin.Context) {
	items, err := h.catalogService.ListContent(c.Request.Context(), models.ContentKind(c.Param("kind")))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetContent handles GET /api/content/:kind/:slug
func (h *Handlers) GetContent(c *gin.Context) {
	item, err := h.catalogService.GetContent(c.Request.Context(), models.ContentKind(c.Param("kind")), c.Param("slug"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Subscribe handles POST /api/subscribers
func (h *Handlers) Subscribe(c *gin.Context) {
	var req models.SubscribeRequest
	if !bindJSON(c, h, &req) {
		return
	}

	subscriber, err := h.catalogService.Subscribe(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, subscriber)
}

// Contact handles POST /api/contact
func (h *Handlers) Contact(c *gin.Context) {
	var req models.ContactRequest
	if !bindJSON(c, h, &req) {
		return
	}

	if err := h.catalogService.Contact(c.Request.Context(), &req); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}
