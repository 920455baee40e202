package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/Cyvadra/tv-dispatch/broker/alpaca"
	"github.com/Cyvadra/tv-dispatch/broker/binance"
	"github.com/Cyvadra/tv-dispatch/internal/config"
	"github.com/Cyvadra/tv-dispatch/internal/database"
	"github.com/Cyvadra/tv-dispatch/internal/handlers"
	"github.com/Cyvadra/tv-dispatch/internal/routes"
	"github.com/gin-gonic/gin"
)

func main() {
	// Parse command line flags
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config from %s: %v", *configFile, err)
	}

	// Initialize database
	if err := database.InitDatabase(cfg.Database.DSN); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Apply exchange client settings
	binance.UseTestnet = cfg.Exchanges.Binance.UseTestnet
	if cfg.Exchanges.Alpaca.BaseURL != "" {
		alpaca.BaseURL = cfg.Exchanges.Alpaca.BaseURL
	}

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// Add middleware
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// Set up services with configuration
	setupServices(cfg)

	// Set up routes
	routes.SetupRoutes(r)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Printf("TradingView webhook endpoint: http://%s/api/v1/webhook/tradingview", addr)
	log.Printf("Health check: http://%s/health", addr)

	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupServices configures all services with the application configuration
func setupServices(cfg *config.Config) {
	webhookHandler := handlers.NewWebhookHandler(cfg.Dispatch)
	webhookHandler.SetConfig(cfg)

	// Store the configured handler globally so routes can access it
	handlers.SetGlobalHandler(webhookHandler)
}
