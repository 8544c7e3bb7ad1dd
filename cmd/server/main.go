package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/simfinity/connect-api/internal/auth"
	"github.com/simfinity/connect-api/internal/catalog"
	"github.com/simfinity/connect-api/internal/database"
	"github.com/simfinity/connect-api/internal/gateway"
	"github.com/simfinity/connect-api/internal/margin"
	"github.com/simfinity/connect-api/internal/notify"
	"github.com/simfinity/connect-api/internal/ordering"
	"github.com/simfinity/connect-api/internal/selector"
	"github.com/simfinity/connect-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Local overrides live in .env; absence is fine in production
	_ = godotenv.Load()

	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the fulfillment API server with graceful
// shutdown support
func main() {
	// Initialize database
	db, err := database.NewDatabase(os.Getenv("DATABASE_PATH"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Optional NATS connection for admin notification publishing
	var natsConn *nats.Conn
	if url := os.Getenv("NATS_URL"); url != "" {
		natsConn, err = nats.Connect(url)
		if err != nil {
			zlog.Warn().Err(err).Msg("Failed to connect to NATS, notifications will only be persisted")
		}
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "connect-secret-key"
	}
	middleware.SetJWTSecret(jwtSecret)

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	marginService := margin.NewService(db)
	marginHandlers := margin.NewGinHandlers(marginService)

	selectorService := selector.NewService(db, marginService)
	selectorHandlers := selector.NewGinHandlers(selectorService)

	resolver := catalog.NewResolver(db)

	registry := gateway.NewRegistry()
	gateway.RegisterSimulatedProviders(registry)

	notifyService := notify.NewService(db, natsConn)
	notifyHandlers := notify.NewGinHandlers(notifyService)

	engine := ordering.NewEngine(resolver, selectorService, marginService, registry,
		notifyService, ordering.NewDatabase(db))
	orderingService := ordering.NewService(db, engine)
	orderingHandlers := ordering.NewGinHandlers(orderingService)

	// Create and start the notification dispatcher
	dispatcher := notify.NewDispatcher(notifyService.GetDB(), natsConn)
	dispatcherCtx, dispatcherCancel := context.WithCancel(context.Background())
	defer dispatcherCancel()

	go dispatcher.Start(dispatcherCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authHandlers, orderingHandlers, selectorHandlers, marginHandlers, notifyHandlers)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if natsConn != nil {
		natsConn.Close()
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Order routes: Protected by JWT authentication
// - Internal routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	orderingHandlers *ordering.GinHandlers,
	selectorHandlers *selector.GinHandlers,
	marginHandlers *margin.GinHandlers,
	notifyHandlers *notify.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth())
		{
			orders.POST("", orderingHandlers.PlaceOrderHandler())
			orders.GET("/:order_id", orderingHandlers.GetOrderStatusHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.GET("/providers", selectorHandlers.EnabledProvidersHandler())
			internal.POST("/failover/cache/clear", marginHandlers.ClearCacheHandler())
			internal.GET("/notifications", notifyHandlers.RecentNotificationsHandler())
		}
	}
}
