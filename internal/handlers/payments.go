package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

const (
	paystackSignatureHeader = "x-paystack-signature"
	maxWebhookBody          = 1 << 20
)

// InitializePayment handles POST /api/payments/initialize
func (h *Handlers) InitializePayment(c *gin.Context) {
	var req models.InitializePaymentRequest
	if !bindJSON(c, h, &req) {
		return
	}

	result, err := h.paymentService.InitializePayment(c.Request.Context(), userID(c), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// VerifyPayment handles GET /api/payments/verify/:reference
func (h *Handlers) VerifyPayment(c *gin.Context) {
	verification, err := h.paymentService.VerifyPayment(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, verification)
}

// PaystackWebhook handles POST /api/webhooks/paystack. The signature covers
// the raw body, so it is read before any parsing.
func (h *Handlers) PaystackWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	signature := c.GetHeader(paystackSignatureHeader)

	outcome, err := h.paymentService.HandleWebhook(c.Request.Context(), body, signature)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"outcome":  outcome,
	})
}
