package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/shamaqar/booking-backend/internal/config"
	"github.com/shamaqar/booking-backend/internal/database"
	"github.com/shamaqar/booking-backend/internal/handlers"
	"github.com/shamaqar/booking-backend/internal/middleware"
	"github.com/shamaqar/booking-backend/internal/services"
	"github.com/shamaqar/booking-backend/pkg/jwt"
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

	logger.Info("Starting Shamaqar Booking Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Type assertion needed: db is interface DB, but repositories need *sqlx.DB
	sqlxDB, ok := db.(*database.PostgresDB)
	if !ok {
		logger.Fatal("Failed to cast database connection to PostgresDB")
	}

	// Initialize repositories
	propertyRepo := database.NewPropertyRepository(sqlxDB.DB)
	bookingRepo := database.NewBookingRepository(sqlxDB.DB)
	reservationRepo := database.NewReservationRepository(sqlxDB.DB)
	sessionRepo := database.NewPaymentSessionRepository(sqlxDB.DB)
	auditRepo := database.NewPaymentAuditRepository(sqlxDB.DB, logger)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	pricingService := services.NewPricingService(cfg.Booking.DepositRate, logger)
	cancellationPolicy := services.NewCancellationPolicy(pricingService, logger)
	paymentService := services.NewPaymentService(&cfg.Payment, sessionRepo, auditRepo, logger)
	bookingService := services.NewBookingService(
		propertyRepo,
		bookingRepo,
		reservationRepo,
		pricingService,
		cancellationPolicy,
		paymentService,
		cfg.Booking.HoldTTL,
		logger,
	)
	reconciliationService := services.NewReconciliationService(
		paymentService,
		sessionRepo,
		bookingService,
		cfg.Booking.VerifyRetries,
		cfg.Booking.VerifyRetryDelay,
		logger,
	)

	if paymentService.IsConfigured() {
		logger.Infof("Payment gateway configured for %s environment", cfg.Payment.Environment)
	} else {
		logger.Warn("Payment gateway not configured, placeholder sessions will be issued")
	}

	// Start the hold expiration sweeper
	holdExpirationService := services.NewHoldExpirationService(
		bookingRepo,
		sessionRepo,
		reservationRepo,
		cfg.Booking.SweepInterval,
		logger,
	)
	holdExpirationService.Start()

	// Start stage-sweep cron jobs (confirmed -> active -> completed)
	cronService := services.NewCronService(bookingRepo)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	logger.Info("Services initialized")

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(bookingService, reconciliationService, paymentService, logger)
	propertyHandler := handlers.NewPropertyHandler(propertyRepo, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Booking routes (all protected)
		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(jwtService))
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.ListBookings)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.POST("/:id/checkout", bookingHandler.Checkout)
			bookings.GET("/:id/payment-status", bookingHandler.GetPaymentStatus)
			bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
		}

		// Property routes
		properties := v1.Group("/properties")
		{
			// Public routes (no authentication)
			properties.GET("/:id", propertyHandler.GetProperty)
			properties.GET("/:id/availability", bookingHandler.GetAvailability)

			// Protected routes (require JWT authentication)
			propertiesProtected := properties.Group("")
			propertiesProtected.Use(middleware.AuthMiddleware(jwtService))
			{
				propertiesProtected.POST("", propertyHandler.CreateProperty)
			}
		}

		// Payment webhook (public, called by the gateway)
		v1.POST("/payments/webhook", bookingHandler.HandleWebhook)

		// Admin cron management routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService), middleware.RequireRole("admin"))
		{
			admin.POST("/cron/activate-due", func(c *gin.Context) {
				if err := cronService.RunActivateDueNow(); err != nil {
					c.JSON(500, gin.H{"error": err.Error()})
					return
				}
				c.JSON(200, gin.H{"message": "Booking activation triggered"})
			})

			admin.POST("/cron/complete-due", func(c *gin.Context) {
				if err := cronService.RunCompleteDueNow(); err != nil {
					c.JSON(500, gin.H{"error": err.Error()})
					return
				}
				c.JSON(200, gin.H{"message": "Booking completion triggered"})
			})

			admin.POST("/sweep/expired-holds", func(c *gin.Context) {
				expired, err := holdExpirationService.RunOnce()
				if err != nil {
					c.JSON(500, gin.H{"error": err.Error()})
					return
				}
				c.JSON(200, gin.H{"message": "Hold expiration sweep triggered", "expired": expired})
			})

			admin.GET("/cron/status", func(c *gin.Context) {
				c.JSON(200, cronService.GetJobStatus())
			})

			admin.GET("/payments/mismatches", func(c *gin.Context) {
				mismatches, err := auditRepo.GetAmountMismatches(c.Request.Context(), 100)
				if err != nil {
					c.JSON(500, gin.H{"error": err.Error()})
					return
				}
				c.JSON(200, gin.H{"mismatches": mismatches, "count": len(mismatches)})
			})
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
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

	// Stop background workers
	holdExpirationService.Stop()
	cronService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		// Build log entry with basic fields
		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		// Add authorization header presence (not the actual token for security)
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			fields["has_auth"] = true
		} else {
			fields["has_auth"] = false
		}

		// Add user context if available
		if userCtx, exists := middleware.GetUserContext(c); exists {
			fields["user_id"] = userCtx.UserID
		}

		entry := logger.WithFields(fields)

		// Log errors with more details
		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
		} else {
			status := c.Writer.Status()
			if status >= 500 {
				entry.Error("Request completed with server error")
			} else if status >= 400 {
				entry.Warn("Request completed with client error")
			} else {
				entry.Info("Request completed successfully")
			}
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		dbStatus := "healthy"
		if err := db.Ping(); err != nil {
			dbStatus = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": dbStatus,
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  dbStatus,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
