package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/castledepotsmail-cyber/castle-depots/cache"
	"github.com/castledepotsmail-cyber/castle-depots/config"
	"github.com/castledepotsmail-cyber/castle-depots/database"
	"github.com/castledepotsmail-cyber/castle-depots/email"
	"github.com/castledepotsmail-cyber/castle-depots/events"
	"github.com/castledepotsmail-cyber/castle-depots/handlers"
	"github.com/castledepotsmail-cyber/castle-depots/middleware"
	"github.com/castledepotsmail-cyber/castle-depots/notify"
)

const serviceName = "castle-depots"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize database
	db, err := database.InitDB(&cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis cache
	redisClient, err := cache.InitRedis(&cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Initialize Kafka producer (no-op when no brokers are configured)
	producer, err := events.InitProducer(&cfg.Kafka, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}

	// Initialize OpenTelemetry
	shutdownTracing, err := middleware.InitTracing(serviceName, &cfg.Tracing)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	mail := email.NewClient(&cfg.Email, logger)
	notifier := notify.NewNotifier(db, mail, producer, logger)

	router := setupRouter(cfg, db, redisClient, mail, notifier, logger)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Castle Depots API started", zap.String("addr", cfg.Server.Addr()))

	gracefulShutdown(srv, db, redisClient, producer, shutdownTracing, logger)
}

func setupRouter(
	cfg *config.Config,
	db *sql.DB,
	redisClient *redis.Client,
	mail *email.Client,
	notifier *notify.Notifier,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	authHandler := handlers.NewAuthHandler(db, redisClient, mail, &cfg.JWT, logger)
	userHandler := handlers.NewUserHandler(db, logger)
	categoryHandler := handlers.NewCategoryHandler(db, logger)
	productHandler := handlers.NewProductHandler(db, redisClient, logger)
	wishlistHandler := handlers.NewWishlistHandler(db, logger)
	reviewHandler := handlers.NewReviewHandler(db, logger)
	campaignHandler := handlers.NewCampaignHandler(db, logger)
	orderHandler := handlers.NewOrderHandler(db, notifier, logger)
	shippingHandler := handlers.NewShippingHandler(db, logger)
	commHandler := handlers.NewCommunicationHandler(db, mail, logger)

	authRequired := middleware.AuthMiddleware(&cfg.JWT)
	staffOnly := middleware.RequireStaff()
	optionalAuth := middleware.OptionalAuth(&cfg.JWT)

	api := router.Group("/api")

	// Accounts
	api.POST("/register", authHandler.Register)
	api.POST("/login", authHandler.Login)
	api.POST("/token/refresh", authHandler.Refresh)
	api.POST("/google-auth", authHandler.GoogleAuth)
	api.POST("/password-reset", authHandler.PasswordResetRequest)
	api.POST("/password-reset/confirm", authHandler.PasswordResetConfirm)
	api.GET("/me", authRequired, authHandler.GetProfile)
	api.PATCH("/me", authRequired, authHandler.UpdateProfile)

	addresses := api.Group("/addresses", authRequired)
	addresses.GET("", userHandler.ListAddresses)
	addresses.POST("", userHandler.CreateAddress)
	addresses.PUT("/:id", userHandler.UpdateAddress)
	addresses.DELETE("/:id", userHandler.DeleteAddress)

	// Catalog
	api.GET("/categories", categoryHandler.ListCategories)
	api.GET("/categories/:slug", categoryHandler.GetCategory)
	api.GET("/products", optionalAuth, productHandler.ListProducts)
	api.GET("/products/:slug", optionalAuth, productHandler.GetProduct)
	api.GET("/products/:slug/reviews", reviewHandler.ListReviews)
	api.POST("/products/:slug/reviews", authRequired, reviewHandler.CreateReview)
	api.DELETE("/reviews/:id", authRequired, reviewHandler.DeleteReview)

	wishlist := api.Group("/wishlist", authRequired)
	wishlist.GET("", wishlistHandler.ListWishlist)
	wishlist.POST("", wishlistHandler.AddToWishlist)
	wishlist.DELETE("/:productID", wishlistHandler.RemoveFromWishlist)

	// Campaigns
	api.GET("/campaigns", campaignHandler.ListCampaigns)
	api.GET("/campaigns/:slug", campaignHandler.GetCampaign)

	// Orders
	orders := api.Group("/orders", authRequired)
	orders.POST("", orderHandler.CreateOrder)
	orders.GET("", orderHandler.ListOrders)
	orders.GET("/:id", orderHandler.GetOrder)
	api.GET("/track/:id", orderHandler.TrackOrder)

	// Shipping
	api.GET("/calculate_shipping", shippingHandler.CalculateShipping)

	// Communication
	notifications := api.Group("/notifications", authRequired)
	notifications.GET("", commHandler.ListNotifications)
	notifications.PATCH("/:id/read", commHandler.MarkNotificationRead)
	notifications.POST("/read_all", commHandler.MarkAllNotificationsRead)

	api.POST("/contact", commHandler.SubmitContact)
	api.POST("/newsletter/subscribe", commHandler.Subscribe)
	api.POST("/newsletter/unsubscribe", commHandler.Unsubscribe)

	tickets := api.Group("/tickets", authRequired)
	tickets.GET("", commHandler.ListTickets)
	tickets.POST("", commHandler.CreateTicket)
	tickets.GET("/:id", commHandler.GetTicket)
	tickets.POST("/:id/messages", commHandler.AddTicketMessage)

	// Admin
	admin := api.Group("/admin", authRequired, staffOnly)
	admin.GET("/users", userHandler.ListUsers)
	admin.PATCH("/users/:id", userHandler.SetStaff)
	admin.DELETE("/users/:id", userHandler.DeleteUser)
	admin.POST("/categories", categoryHandler.CreateCategory)
	admin.PUT("/categories/:id", categoryHandler.UpdateCategory)
	admin.DELETE("/categories/:id", categoryHandler.DeleteCategory)
	admin.POST("/products", productHandler.CreateProduct)
	admin.PUT("/products/:id", productHandler.UpdateProduct)
	admin.DELETE("/products/:id", productHandler.DeleteProduct)
	admin.POST("/products/:id/images", productHandler.AddProductImage)
	admin.DELETE("/products/:id/images/:imageID", productHandler.DeleteProductImage)
	admin.POST("/campaigns", campaignHandler.CreateCampaign)
	admin.PUT("/campaigns/:id", campaignHandler.UpdateCampaign)
	admin.DELETE("/campaigns/:id", campaignHandler.DeleteCampaign)
	admin.GET("/orders/stats", orderHandler.OrderStats)
	admin.PATCH("/orders/:id", orderHandler.UpdateOrder)
	admin.GET("/settings", shippingHandler.GetSettings)
	admin.PUT("/settings", shippingHandler.UpdateSettings)
	admin.GET("/contact", commHandler.ListContactMessages)
	admin.POST("/tickets/:id/resolve", commHandler.ResolveTicket)
	admin.POST("/newsletter/send_blast", commHandler.SendBlast)

	return router
}

// gracefulShutdown handles SIGINT/SIGTERM and shuts down all services gracefully
func gracefulShutdown(
	srv *http.Server,
	db *sql.DB,
	redisClient *redis.Client,
	producer *events.Producer,
	shutdownTracing func(),
	logger *zap.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown signal received. Exiting...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server forced to shutdown", zap.Error(err))
	} else {
		logger.Info("HTTP server stopped gracefully")
	}

	if err := producer.Close(); err != nil {
		logger.Error("Failed to close Kafka producer", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil {
		logger.Error("Failed to close Redis connection", zap.Error(err))
	}

	if err := db.Close(); err != nil {
		logger.Error("Failed to close database connection", zap.Error(err))
	}

	shutdownTracing()
	logger.Info("Shutdown complete")
}
