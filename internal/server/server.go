package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/middleware"
)

type Server struct {
	config     *config.Config
	router     *gin.Engine
	httpServer *http.Server
	logger     *logrus.Entry
}

func New(h *handlers.Handlers, auth *middleware.Authenticator, cfg *config.Config, logger *logrus.Entry) *Server {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.SecurityHeaders(),
		middleware.Metrics(),
		auth.Session(),
		middleware.Logger(logger),
	)

	s := &Server{
		config: cfg,
		router: router,
		logger: logger,
	}
	s.setupRoutes(h)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes(h *handlers.Handlers) {
	s.router.GET("/health", h.Health)
	s.router.GET("/ready", h.Ready)
	s.router.GET("/live", h.Live)
	s.router.GET("/version", h.Version)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	{
		api.GET("/products", h.ListProducts)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/content/:kind", h.ListContent)
		api.GET("/content/:kind/:slug", h.GetContent)
		api.POST("/subscribers", h.Subscribe)
		api.POST("/contact", h.Contact)
		api.POST("/auth/forgot-password", h.ForgotPassword)
		api.POST("/auth/reset-password", h.ResetPassword)
		api.POST("/webhooks/paystack", h.PaystackWebhook)
	}

	user := api.Group("", middleware.RequireSession())
	{
		user.POST("/checkout", h.Checkout)
		user.GET("/orders", h.ListMyOrders)
		user.GET("/orders/:id", h.GetMyOrder)

		user.POST("/payments/initialize", h.InitializePayment)
		user.GET("/payments/verify/:reference", h.VerifyPayment)

		user.GET("/cart", h.GetCart)
		user.POST("/cart", h.AddToCart)
		user.POST("/cart/sync", h.SyncCart)
		user.PUT("/cart/:productId", h.UpdateCartItem)
		user.DELETE("/cart/:productId", h.RemoveFromCart)

		user.GET("/wishlist", h.GetWishlist)
		user.POST("/wishlist", h.AddToWishlist)
		user.DELETE("/wishlist/:productId", h.RemoveFromWishlist)
		user.POST("/wishlist/:productId/move-to-cart", h.MoveToCart)
	}

	admin := api.Group("/admin", middleware.RequireAdmin())
	{
		admin.GET("/stats", h.OrderStats)

		admin.GET("/orders", h.ListOrders)
		admin.GET("/orders/:id", h.GetOrder)
		admin.PATCH("/orders/:id/status", h.UpdateOrderStatus)

		admin.GET("/products", h.AdminListProducts)
		admin.POST("/products", h.CreateProduct)
		admin.GET("/products/:id", h.AdminGetProduct)
		admin.PUT("/products/:id", h.UpdateProduct)
		admin.PATCH("/products/:id/archive", h.ArchiveProduct)
		admin.DELETE("/products/:id", h.DeleteProduct)

		admin.GET("/content/:kind", h.AdminListContent)
		admin.POST("/content/:kind", h.CreateContent)
		admin.PUT("/content/:kind/:id", h.UpdateContent)
		admin.DELETE("/content/:kind/:id", h.DeleteContent)

		admin.POST("/media/:folder", h.UploadMedia)
		admin.DELETE("/media/:folder/*path", h.DeleteMedia)

		admin.GET("/subscribers", h.ListSubscribers)
	}
}

func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
