package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// Checkout handles POST /api/checkout
func (h *Handlers) Checkout(c *gin.Context) {
	var req models.CheckoutRequest
	if !bindJSON(c, h, &req) {
		return
	}

	order, err := h.orderService.Checkout(c.Request.Context(), userID(c), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"orderId": order.ID,
		"order":   order,
	})
}

// ListMyOrders handles GET /api/orders
func (h *Handlers) ListMyOrders(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	orders, total, err := h.orderService.ListUserOrders(c.Request.Context(), userID(c), limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
	})
}

// GetMyOrder handles GET /api/orders/:id
func (h *Handlers) GetMyOrder(c *gin.Context) {
	order, err := h.orderService.GetUserOrder(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// ListOrders handles GET /api/admin/orders
func (h *Handlers) ListOrders(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	filter := &models.OrderListFilter{
		UserID: c.Query("user_id"),
		Limit:  limit,
		Offset: offset,
	}
	if status := c.Query("status"); status != "" {
		s := models.OrderStatus(status)
		filter.Status = &s
	}

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetOrder handles GET /api/admin/orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus handles PATCH /api/admin/orders/:id/status
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	var req models.UpdateOrderStatusRequest
	if !bindJSON(c, h, &req) {
		return
	}

	order, err := h.orderService.UpdateOrderStatus(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// OrderStats handles GET /api/admin/stats
func (h *Handlers) OrderStats(c *gin.Context) {
	stats, err := h.orderService.Stats(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
