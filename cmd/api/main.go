package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artgrid/backend/internal/config"
	"github.com/artgrid/backend/internal/handlers"
	"github.com/artgrid/backend/internal/middleware"
	"github.com/artgrid/backend/internal/models"
	"github.com/artgrid/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.New()

	// Initialize database
	db, err := models.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Run migrations
	if err := models.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Redis
	redisClient := models.InitRedis(cfg)
	defer redisClient.Close()

	// Initialize services
	authService := services.NewAuthService(db, redisClient, cfg)
	userService := services.NewUserService(db)
	categoryService := services.NewCategoryService(db)
	assetService := services.NewAssetService(db, cfg)
	emailService := services.NewEmailService(cfg)
	adminService := services.NewAdminService(db, cfg)
	auditService := services.NewAuditService(db)
	uploadService := services.NewUploadService(cfg)
	invoiceService := services.NewInvoiceService(cfg)
	paypalClient := services.NewPayPalClient(cfg)
	purchaseService := services.NewPurchaseService(db, redisClient, cfg, paypalClient)

	// Seed default categories and the admin account
	if err := categoryService.SeedDefaults(); err != nil {
		log.Printf("Failed to seed categories: %v", err)
	}
	if err := adminService.CreateDefaultAdmin(); err != nil {
		log.Printf("Failed to create default admin: %v", err)
	}

	// Periodic cleanup of expired refresh tokens
	go func() {
		for {
			if err := authService.CleanupExpiredTokens(); err != nil {
				log.Printf("Refresh token cleanup error: %v", err)
			}
			time.Sleep(1 * time.Hour)
		}
	}()

	// Setup Gin router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimiter(redisClient, cfg))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, emailService, cfg)
	galleryHandler := handlers.NewGalleryHandler(assetService, categoryService, purchaseService)
	userHandler := handlers.NewUserHandler(userService, assetService, purchaseService, uploadService, invoiceService)
	adminHandler := handlers.NewAdminHandler(adminService, assetService, userService, auditService, emailService)
	paypalHandler := handlers.NewPayPalHandler(purchaseService, emailService, userService, cfg)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Setup routes
	api := router.Group("/api/v1")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})

		// Catch-all OPTIONS handler for CORS preflight requests
		api.OPTIONS("/*path", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})

		// Public gallery
		gallery := api.Group("/gallery")
		gallery.Use(middleware.OptionalAuth(authService))
		{
			gallery.GET("", galleryHandler.GetGallery)
			gallery.GET("/assets/:id", galleryHandler.GetAsset)
			gallery.GET("/categories", galleryHandler.GetCategories)
		}

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", middleware.Auth(authService), authHandler.Logout)
		}

		// User routes
		user := api.Group("/user")
		user.Use(middleware.Auth(authService))
		{
			user.GET("/profile", userHandler.GetProfile)
			user.PUT("/profile", userHandler.UpdateProfile)
			user.GET("/assets", userHandler.GetMyAssets)
			user.POST("/assets", userHandler.CreateAsset)
			user.POST("/assets/:id/checkout", userHandler.InitiateCheckout)
			user.GET("/assets/:id/download", userHandler.DownloadAsset)
			user.GET("/purchases", userHandler.GetPurchases)
			user.GET("/purchases/:id/invoice", userHandler.GetInvoice)
			user.GET("/purchases/:id/invoice.pdf", userHandler.GetInvoicePDF)

			// Upload signing with a daily per-user cap
			uploadGroup := user.Group("/uploads")
			uploadGroup.Use(middleware.UploadSignatureRateLimit(redisClient, cfg))
			{
				uploadGroup.POST("/sign", userHandler.SignUpload)
			}
		}

		// Admin routes
		admin := api.Group("/admin")
		admin.Use(middleware.Auth(authService))
		admin.Use(middleware.AdminOnly())
		{
			admin.GET("/assets/pending", adminHandler.GetPendingAssets)

			// Moderation with rate limiting and a block after mass actions
			moderation := admin.Group("/assets")
			moderation.Use(middleware.WithAuditAction("approve_asset,reject_asset"))
			moderation.Use(middleware.AdminActionRateLimit(auditService, redisClient, cfg.AdminRateLimitActions, cfg.AdminRateLimitWindowMinutes))
			{
				moderation.PUT("/:id/approval", adminHandler.SetAssetApproval)
			}

			admin.GET("/users", adminHandler.GetUsers)
			admin.PUT("/users/:id/active", adminHandler.SetUserActive)
			admin.GET("/audit/logs", adminHandler.GetAuditLogs)
			admin.GET("/stats", adminHandler.GetStats)
		}

		// Payment gateway callbacks. The capture callback is a browser
		// redirect, so auth failures send the payer to the sign-in page.
		api.GET("/paypal/capture", middleware.AuthRedirect(authService, cfg.FrontendURL+"/login"), paypalHandler.HandleCapture)
		api.POST("/paypal/webhook", paypalHandler.HandleWebhook)
	}

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
