package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/fortunehq/portfolio-api/internal/admin"
	"github.com/fortunehq/portfolio-api/internal/auth"
	"github.com/fortunehq/portfolio-api/internal/config"
	"github.com/fortunehq/portfolio-api/internal/dashboard"
	"github.com/fortunehq/portfolio-api/internal/database"
	"github.com/fortunehq/portfolio-api/internal/ledger"
	"github.com/fortunehq/portfolio-api/internal/orders"
	"github.com/fortunehq/portfolio-api/internal/quotes"
	"github.com/fortunehq/portfolio-api/internal/stocks"
	"github.com/fortunehq/portfolio-api/internal/watchlist"
	"github.com/fortunehq/portfolio-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
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

// main initializes and runs the portfolio API server with graceful
// shutdown support
func main() {
	// .env is optional; environment always wins
	if err := godotenv.Load(); err != nil {
		zlog.Debug().Msg("no .env file found")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Initialize services and handlers
	quoteClient := quotes.NewClient(cfg.Quotes)
	newsClient := dashboard.NewNewsClient(cfg.News)

	ledgerStore := ledger.NewDatabase(db)

	authService := auth.NewService(cfg.JWTSecret, db)
	authHandlers := auth.NewGinHandlers(authService)

	orderService := orders.NewService(ledgerStore, quoteClient, authService, cfg.AllowShortSelling)
	orderHandlers := orders.NewGinHandlers(orderService)

	watchlistService := watchlist.NewService(db, quoteClient, authService)
	watchlistHandlers := watchlist.NewGinHandlers(watchlistService)

	stockService := stocks.NewService(db, quoteClient, cfg.Refresher.Symbols)
	stockHandlers := stocks.NewGinHandlers(stockService)

	dashboardService := dashboard.NewService(db, quoteClient, newsClient, authService)
	dashboardHandlers := dashboard.NewGinHandlers(dashboardService)

	adminService := admin.NewService(db, ledgerStore)
	adminHandlers := admin.NewGinHandlers(adminService)

	// Create and start the stock cache refresher
	refresher := stocks.NewRefresher(stockService, cfg.Refresher.Interval)
	refresherCtx, refresherCancel := context.WithCancel(context.Background())
	defer refresherCancel()

	go refresher.Start(refresherCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg.JWTSecret, authHandlers, orderHandlers, watchlistHandlers, stockHandlers, dashboardHandlers, adminHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
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

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for signup and login
// - User routes: Protected by JWT authentication
// - Admin routes: Additionally require the admin claim
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	orderHandlers *orders.GinHandlers,
	watchlistHandlers *watchlist.GinHandlers,
	stockHandlers *stocks.GinHandlers,
	dashboardHandlers *dashboard.GinHandlers,
	adminHandlers *admin.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/signup", authHandlers.SignupHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
		}

		// Order and holdings routes
		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(jwtSecret))
		{
			protected.POST("/orders", orderHandlers.PlaceOrderHandler())
			protected.GET("/orders", orderHandlers.GetOrdersHandler())
			protected.GET("/holdings", orderHandlers.GetHoldingsHandler())

			protected.GET("/watchlist", watchlistHandlers.ListHandler())
			protected.POST("/watchlist", watchlistHandlers.AddHandler())
			protected.DELETE("/watchlist", watchlistHandlers.RemoveHandler())

			protected.GET("/stocks", stockHandlers.LookupHandler())
			protected.GET("/stocks/cached", stockHandlers.ListCachedHandler())

			protected.GET("/dashboard/market-overview", dashboardHandlers.MarketOverviewHandler())
			protected.GET("/dashboard/news", dashboardHandlers.NewsHandler())
			protected.GET("/dashboard/portfolio-value", dashboardHandlers.PortfolioValueHandler())
			protected.GET("/dashboard/trade-stats", dashboardHandlers.TradeStatsHandler())
		}

		// Admin routes
		adminGroup := v1.Group("/admin")
		adminGroup.Use(middleware.JWTAuth(jwtSecret), middleware.AdminAuth())
		{
			adminGroup.GET("/dashboard", adminHandlers.OverviewHandler())
			adminGroup.GET("/users", adminHandlers.UserStatsHandler())
			adminGroup.GET("/financials", adminHandlers.FinancialsHandler())
			adminGroup.GET("/alerts", adminHandlers.AlertsHandler())
			adminGroup.GET("/chart", adminHandlers.ChartDataHandler())
			adminGroup.POST("/stocks/refresh", stockHandlers.RefreshHandler())
			adminGroup.POST("/holdings/repair/:user_id", adminHandlers.RepairHoldingsHandler())
		}
	}
}
