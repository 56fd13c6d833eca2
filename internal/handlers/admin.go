package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/service"
)

type archiveRequest struct {
	Archived *bool `json:"archived" binding:"required"`
}

// AdminListProducts handles GET /api/admin/products
func (h *Handlers) AdminListProducts(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	page, err := h.adminService.ListProducts(c.Request.Context(), &models.ProductFilter{
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

// AdminGetProduct handles GET /api/admin/products/:id
func (h *Handlers) AdminGetProduct(c *gin.Context) {
	product, err := h.adminService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// CreateProduct handles POST /api/admin/products
func (h *Handlers) CreateProduct(c *gin.Context) {
	var req models.ProductInput
	if !bindJSON(c, h, &req) {
		return
	}

	product, err := h.adminService.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/admin/products/:id
func (h *Handlers) UpdateProduct(c *gin.Context) {
	var req models.ProductInput
	if !bindJSON(c, h, &req) {
		return
	}

	product, err := h.adminService.UpdateProduct(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// ArchiveProduct handles PATCH /api/admin/products/:id/archive
func (h *Handlers) ArchiveProduct(c *gin.Context) {
	var req archiveRequest
	if !bindJSON(c, h, &req) {
		return
	}

	product, err := h.adminService.SetProductArchived(c.Request.Context(), c.Param("id"), *req.Archived)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/admin/products/:id
func (h *Handlers) DeleteProduct(c *gin.Context) {
	if err := h.adminService.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AdminListContent handles GET /api/admin/content/:kind
func (h *Handlers) AdminListContent(c *gin.Context) {
	items, err := h.adminService.ListContent(c.Request.Context(), models.ContentKind(c.Param("kind")))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// CreateContent handles POST /api/admin/content/:kind
func (h *Handlers) CreateContent(c *gin.Context) {
	var req models.ContentInput
	if !bindJSON(c, h, &req) {
		return
	}

	item, err := h.adminService.CreateContent(c.Request.Context(), models.ContentKind(c.Param("kind")), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// UpdateContent handles PUT /api/admin/content/:kind/:id
func (h *Handlers) UpdateContent(c *gin.Context) {
	var req models.ContentInput
	if !bindJSON(c, h, &req) {
		return
	}

	item, err := h.adminService.UpdateContent(c.Request.Context(), models.ContentKind(c.Param("kind")), c.Param("id"), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteContent handles DELETE /api/admin/content/:kind/:id
func (h *Handlers) DeleteContent(c *gin.Context) {
	if err := h.adminService.DeleteContent(c.Request.Context(), models.ContentKind(c.Param("kind")), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadMedia handles POST /api/admin/media/:folder (multipart field "file").
func (h *Handlers) UploadMedia(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, service.MaxUploadSize+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required", "field": "file"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer f.Close()

	upload, err := h.adminService.UploadMedia(c.Request.Context(), c.Param("folder"), fh.Filename, f, fh.Size, fh.Header.Get("Content-Type"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, upload)
}

// DeleteMedia handles DELETE /api/admin/media/:folder/*path
func (h *Handlers) DeleteMedia(c *gin.Context) {
	if err := h.adminService.DeleteMedia(c.Request.Context(), c.Param("folder"), c.Param("path")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListSubscribers handles GET /api/admin/subscribers
func (h *Handlers) ListSubscribers(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		h.handleError(c, err)
		return
	}

	subscribers, total, err := h.adminService.ListSubscribers(c.Request.Context(), limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subscribers": subscribers,
		"total":       total,
	})
}
