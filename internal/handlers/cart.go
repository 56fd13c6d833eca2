package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// GetCart handles GET /api/cart
func (h *Handlers) GetCart(c *gin.Context) {
	items, err := h.cartService.GetCart(c.Request.Context(), userID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// AddToCart handles POST /api/cart
func (h *Handlers) AddToCart(c *gin.Context) {
	var req models.AddCartItemRequest
	if !bindJSON(c, h, &req) {
		return
	}

	items, err := h.cartService.AddToCart(c.Request.Context(), userID(c), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// UpdateCartItem handles PUT /api/cart/:productId
func (h *Handlers) UpdateCartItem(c *gin.Context) {
	var req models.UpdateCartItemRequest
	if !bindJSON(c, h, &req) {
		return
	}

	items, err := h.cartService.UpdateCartItem(c.Request.Context(), userID(c), c.Param("productId"), *req.Quantity)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// RemoveFromCart handles DELETE /api/cart/:productId
func (h *Handlers) RemoveFromCart(c *gin.Context) {
	items, err := h.cartService.RemoveFromCart(c.Request.Context(), userID(c), c.Param("productId"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// SyncCart handles POST /api/cart/sync
func (h *Handlers) SyncCart(c *gin.Context) {
	var req models.SyncCartRequest
	if !bindJSON(c, h, &req) {
		return
	}

	items, err := h.cartService.SyncCart(c.Request.Context(), userID(c), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetWishlist handles GET /api/wishlist
func (h *Handlers) GetWishlist(c *gin.Context) {
	items, err := h.cartService.GetWishlist(c.Request.Context(), userID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// AddToWishlist handles POST /api/wishlist
func (h *Handlers) AddToWishlist(c *gin.Context) {
	var req models.AddWishlistItemRequest
	if !bindJSON(c, h, &req) {
		return
	}

	items, err := h.cartService.AddToWishlist(c.Request.Context(), userID(c), req.ProductID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// RemoveFromWishlist handles DELETE /api/wishlist/:productId
func (h *Handlers) RemoveFromWishlist(c *gin.Context) {
	items, err := h.cartService.RemoveFromWishlist(c.Request.Context(), userID(c), c.Param("productId"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// MoveToCart handles POST /api/wishlist/:productId/move-to-cart
func (h *Handlers) MoveToCart(c *gin.Context) {
	items, err := h.cartService.MoveToCart(c.Request.Context(), userID(c), c.Param("productId"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
