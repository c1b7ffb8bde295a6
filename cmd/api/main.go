package main

import (
	"fmt"

	"stonksnote/internal/cache"
	"stonksnote/internal/config"
	"stonksnote/internal/database"
	"stonksnote/internal/logger"
	"stonksnote/internal/server"
	"stonksnote/internal/validator"

	_ "stonksnote/internal/docs" // Import swagger docs
)

// @title           Stonksnote API
// @version         1.0
// @description     Stonksnote tracks stock trades: broker wallets, share holdings, buy and sell execution and an equity watchlist.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Admin API key for catalog management.

func main() {
	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var logFile *logger.FileConfig
	if appConfig.LogFile != "" {
		logFile = &logger.FileConfig{
			Path:       appConfig.LogFile,
			MaxSizeMB:  appConfig.LogMaxSizeMB,
			MaxBackups: appConfig.LogMaxBackups,
			MaxAgeDays: appConfig.LogMaxAgeDays,
			Compress:   true,
		}
	}
	logger.Init(appConfig.Env, logFile)
	defer logger.Sync()
	log := logger.Get()

	if appConfig.AdminAPIKey == "" {
		log.Warn("ADMIN_API_KEY is not set; catalog admin routes will reject every request")
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	store, err := cache.Open(appConfig.CacheDir, appConfig.CacheTTL)
	if err != nil {
		return fmt.Errorf("failed to open permission cache: %w", err)
	}
	defer store.Close()

	validator.Register()

	svc := server.NewServices(appConfig, dbManager.DB(), store)
	router := server.NewRouter(appConfig, svc)

	log.Infof("Starting stonksnote server on port %s (%s)", appConfig.Port, dbConfig.Driver)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
