package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/homeserve/marketplace-backend/internal/cache"
	"github.com/homeserve/marketplace-backend/internal/config"
	"github.com/homeserve/marketplace-backend/internal/database"
	"github.com/homeserve/marketplace-backend/internal/events"
	"github.com/homeserve/marketplace-backend/internal/handlers"
	"github.com/homeserve/marketplace-backend/internal/metrics"
	"github.com/homeserve/marketplace-backend/internal/middleware"
	"github.com/homeserve/marketplace-backend/internal/models"
	"github.com/homeserve/marketplace-backend/internal/services"
	"github.com/homeserve/marketplace-backend/pkg/jwt"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting home services marketplace backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Database
	logger.WithField("driver", cfg.Database.Driver).Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		migrator, err := database.NewMigrator(db.DB, logger)
		if err != nil {
			logger.Fatalf("Failed to create migrator: %v", err)
		}
		migrateCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err = migrator.Up(migrateCtx)
		cancel()
		if err != nil {
			logger.Fatalf("Failed to apply migrations: %v", err)
		}
	}

	healthChecks := map[string]handlers.HealthCheck{"database": db.PingContext}

	// Cache
	var appCache cache.Cache = cache.Noop{}
	if cfg.Redis.Address != "" {
		redisCache := cache.NewRedisCache(cache.NewRedisClient(cfg.Redis), cfg.Redis.TTL)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := redisCache.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, caching disabled")
		} else {
			appCache = redisCache
			healthChecks["redis"] = redisCache.Ping
			logger.WithField("address", cfg.Redis.Address).Info("Redis cache enabled")
		}
	}

	metrics.Register()
	bus := events.NewEventBus(logger)
	services.RegisterCacheInvalidation(bus, appCache, logger)

	// Repositories
	userRepository := database.NewUserRepository(db)
	refreshTokenRepository := database.NewRefreshTokenRepository(db)
	providerRepository := database.NewProviderRepository(db)
	bookingRepository := database.NewBookingRepository(db)
	complaintRepository := database.NewComplaintRepository(db)
	reviewRepository := database.NewReviewRepository(db)
	catalogRepository := database.NewCatalogRepository(db)
	statsRepository := database.NewStatsRepository(db)
	auditRepository := database.NewAuditRepository(db)
	inquiryRepository := database.NewInquiryRepository(db)

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	auditService := services.NewAuditService(auditRepository, logger, cfg.Security.EnableAuditLog)
	authService := services.NewAuthService(
		userRepository,
		refreshTokenRepository,
		providerRepository,
		jwtService,
		auditService,
		cfg.Security.BcryptCost,
		logger,
	)
	providerService := services.NewProviderService(providerRepository, appCache, auditService, bus, logger)
	bookingService := services.NewBookingService(bookingRepository, providerRepository, bus, cfg.Marketplace, logger)
	complaintService := services.NewComplaintService(complaintRepository, bookingRepository, auditService, bus, logger)
	reviewService := services.NewReviewService(reviewRepository, bookingRepository, bus, logger)
	dashboardService := services.NewDashboardService(statsRepository, providerRepository, appCache, logger)
	catalogService := services.NewCatalogService(catalogRepository, userRepository)
	adminService := services.NewAdminService(userRepository, providerRepository, auditService, bus, logger)
	inquiryService := services.NewInquiryService(inquiryRepository, auditService, logger)
	exportService := services.NewExportService(bookingRepository, auditService, cfg.Marketplace.ProviderShareBps, logger)

	cronService := services.NewCronService(cfg.Cron, refreshTokenRepository, providerRepository, auditService, logger)
	if cfg.Cron.Enabled {
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
	}
	logger.Info("Services initialized")

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	providerHandler := handlers.NewProviderHandler(providerService, reviewService, logger)
	complaintHandler := handlers.NewComplaintHandler(complaintService, logger)
	reviewHandler := handlers.NewReviewHandler(reviewService, logger)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, catalogService, logger)
	adminHandler := handlers.NewAdminHandler(adminService, dashboardService, exportService, cronService, logger)
	inquiryHandler := handlers.NewInquiryHandler(inquiryService, logger)
	healthHandler := handlers.NewHealthHandler(version, healthChecks)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestContext())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger(logger))
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	authRequired := middleware.AuthMiddleware(jwtService, logger)
	customerOnly := middleware.RequireRole(models.RoleCustomer)
	providerOnly := middleware.RequireRole(models.RoleProvider)
	verifiedProvider := middleware.RequireVerifiedProvider(providerRepository, logger)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.NewRateLimiter(cfg.RateLimit).Middleware())
	v1.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))
	{
		v1.GET("/services", dashboardHandler.ListServices)

		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.RegisterCustomer)
			auth.POST("/register/provider", authHandler.RegisterProvider)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
			auth.POST("/logout-all", authRequired, authHandler.LogoutAll)
			auth.GET("/me", authRequired, authHandler.Me)
			auth.PATCH("/me", authRequired, authHandler.UpdateProfile)
		}

		// Browsing providers works anonymously; a token only widens visibility
		providers := v1.Group("/providers")
		{
			providers.GET("/me", authRequired, providerOnly, providerHandler.GetMyProfile)
			providers.PATCH("/me/availability", authRequired, providerOnly, providerHandler.UpdateAvailability)
			providers.GET("/me/earnings", authRequired, providerOnly, bookingHandler.ProviderEarnings)

			optional := middleware.OptionalAuth(jwtService, logger)
			providers.GET("", optional, providerHandler.ListProviders)
			providers.GET("/:id", optional, providerHandler.GetProvider)
			providers.GET("/:id/reviews", optional, providerHandler.GetProviderReviews)
		}

		v1.POST("/inquiries", middleware.OptionalAuth(jwtService, logger), inquiryHandler.Submit)

		protected := v1.Group("")
		protected.Use(authRequired)
		{
			protected.GET("/dashboard", dashboardHandler.Dashboard)
			protected.GET("/wallet", dashboardHandler.Wallet)

			bookings := protected.Group("/bookings")
			{
				bookings.POST("", customerOnly, bookingHandler.CreateBooking)
				bookings.GET("", bookingHandler.ListBookings)
				bookings.GET("/:id", bookingHandler.GetBooking)
				bookings.GET("/:id/history", bookingHandler.GetBookingHistory)
				bookings.PATCH("/:id", customerOnly, bookingHandler.EditBooking)
				bookings.PATCH("/:id/cancel", bookingHandler.Transition(models.BookingEventCancel))
				bookings.PATCH("/:id/accept", providerOnly, verifiedProvider, bookingHandler.Transition(models.BookingEventAccept))
				bookings.PATCH("/:id/reject", providerOnly, verifiedProvider, bookingHandler.Transition(models.BookingEventReject))
				bookings.PATCH("/:id/complete", providerOnly, verifiedProvider, bookingHandler.Transition(models.BookingEventComplete))
				bookings.PATCH("/:id/reschedule", providerOnly, verifiedProvider, bookingHandler.ProposeReschedule)
				bookings.PATCH("/:id/reschedule/response", customerOnly, bookingHandler.RespondReschedule)
			}

			complaints := protected.Group("/complaints")
			{
				complaints.POST("", customerOnly, complaintHandler.FileComplaint)
				complaints.GET("/mine", customerOnly, complaintHandler.ListMyComplaints)
				complaints.GET("/:id", complaintHandler.GetComplaint)
			}

			reviews := protected.Group("/reviews")
			{
				reviews.POST("", customerOnly, reviewHandler.CreateReview)
				reviews.GET("/mine", customerOnly, reviewHandler.ListMyReviews)
			}

			admin := protected.Group("/admin")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.GET("/stats", adminHandler.Stats)
				admin.GET("/users", adminHandler.ListUsers)
				admin.DELETE("/users/:id", adminHandler.DeleteUser)
				admin.GET("/bookings", bookingHandler.ListBookings)
				admin.GET("/bookings/export", adminHandler.ExportBookings)
				admin.GET("/audit-logs", adminHandler.AuditLog)
				admin.PATCH("/providers/:id/verify", providerHandler.VerifyProvider)
				admin.GET("/providers/:id/earnings", bookingHandler.ProviderEarnings)
				admin.GET("/complaints", complaintHandler.ListComplaints)
				admin.PATCH("/complaints/:id/:action", complaintHandler.Action)
				admin.GET("/inquiries", inquiryHandler.List)
				admin.PATCH("/inquiries/:id/status", inquiryHandler.UpdateStatus)
				admin.GET("/cron", adminHandler.CronStatus)
				admin.POST("/cron/:job/run", adminHandler.RunCronJob)
			}
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	if cfg.Cron.Enabled {
		cronService.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}
