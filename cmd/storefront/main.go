package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/server"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/service"
)

func main() {
	cfg := config.Load()

	logger := logging.New(cfg.ServiceName, cfg.LogLevel)
	logger.WithField("port", cfg.Server.Port).Info("Starting storefront service")

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("AUTH_JWT_SECRET is required")
	}
	if cfg.Paystack.SecretKey == "" {
		logger.Warn("PAYSTACK_SECRET_KEY is empty; every webhook will be rejected")
	}

	db, err := initDatabase(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repository.EnsureSchema(schemaCtx, db, logging.Component(logger, "schema")); err != nil {
		cancelSchema()
		logger.WithError(err).Fatal("Failed to ensure schema")
	}
	cancelSchema()

	redisClient := repository.NewRedisClient(cfg.Redis)
	defer redisClient.Close()

	repoLogger := logging.Component(logger, "repository")
	orderRepo := repository.NewPostgresOrderRepository(db, repoLogger)
	productRepo := repository.NewPostgresProductRepository(db, repoLogger)
	cartRepo := repository.NewPostgresCartRepository(db, repoLogger)
	wishlistRepo := repository.NewPostgresWishlistRepository(db, repoLogger)
	contentRepo := repository.NewPostgresContentRepository(db, repoLogger)
	subscriberRepo := repository.NewPostgresSubscriberRepository(db, repoLogger)
	userRepo := repository.NewPostgresUserRepository(db, repoLogger)
	catalogCache := repository.NewRedisCatalogCache(redisClient, cfg.Redis.TTL, logging.Component(logger, "catalog-cache"))
	dedup := repository.NewRedisDedupStore(redisClient, "storefront:dedup:")

	paystack := clients.NewPaystackClient(cfg.Paystack, logging.Component(logger, "paystack"))
	mailer := clients.NewHTTPMailer(cfg.Email, logging.Component(logger, "mailer"))
	storage, err := clients.NewMinioStorage(cfg.Storage, logging.Component(logger, "storage"))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create object storage client")
	}

	eventPublisher := events.NewKafkaPublisher(cfg.Kafka, logging.Component(logger, "publisher"))
	defer eventPublisher.Close()

	orderService := service.NewOrderService(
		orderRepo,
		productRepo,
		cartRepo,
		eventPublisher,
		cfg,
		logging.Component(logger, "order-service"),
	)
	paymentService := service.NewPaymentService(
		paystack,
		orderRepo,
		dedup,
		eventPublisher,
		cfg,
		logging.Component(logger, "payment-service"),
	)
	cartService := service.NewCartService(cartRepo, wishlistRepo, productRepo, logging.Component(logger, "cart-service"))
	catalogService := service.NewCatalogService(
		productRepo,
		contentRepo,
		subscriberRepo,
		catalogCache,
		mailer,
		cfg,
		logging.Component(logger, "catalog-service"),
	)
	adminService := service.NewAdminService(
		productRepo,
		contentRepo,
		subscriberRepo,
		catalogCache,
		storage,
		logging.Component(logger, "admin-service"),
	)
	authService := service.NewAuthService(userRepo, mailer, cfg, logging.Component(logger, "auth-service"))

	h := handlers.NewHandlers(
		orderService,
		paymentService,
		cartService,
		catalogService,
		adminService,
		authService,
		cfg,
		logging.Component(logger, "handlers"),
	)
	h.AddReadinessCheck("postgres", db.PingContext)
	h.AddReadinessCheck("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	h.AddReadinessCheck("storage", storage.Ping)

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.AdminEmails)
	srv := server.New(h, auth, cfg, logging.Component(logger, "http"))

	go func() {
		logger.WithFields(logrus.Fields{
			"port":                   cfg.Server.Port,
			"enable_order_events":    cfg.Features.EnableOrderEvents,
			"enable_catalog_caching": cfg.Features.EnableCatalogCaching,
			"enable_email_consumer":  cfg.Features.EnableEmailConsumer,
		}).Info("Server starting")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	var consumer *events.NotificationConsumer
	if cfg.Features.EnableEmailConsumer {
		consumer = events.NewNotificationConsumer(cfg.Kafka, mailer, dedup, logging.Component(logger, "consumer"))
		go func() {
			if err := consumer.Start(context.Background()); err != nil {
				logger.WithError(err).Error("Notification consumer failed")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if consumer != nil {
		consumer.Stop()
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

func initDatabase(cfg *config.Config, logger *logrus.Entry) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"host": cfg.Database.Host,
		"name": cfg.Database.Name,
	}).Info("Database connected")

	return db, nil
}
