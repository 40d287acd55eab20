package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ilyaseen19/krios-sub001/internal/handler"
	"github.com/ilyaseen19/krios-sub001/internal/middleware"
	"github.com/ilyaseen19/krios-sub001/internal/syncengine"
	"github.com/ilyaseen19/krios-sub001/internal/tenantdb"
	"github.com/ilyaseen19/krios-sub001/pkg/config"
	"github.com/ilyaseen19/krios-sub001/pkg/jwtutil"
	"github.com/ilyaseen19/krios-sub001/pkg/logger"
	"github.com/ilyaseen19/krios-sub001/prometheus"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found or error loading: %v\n", err)
	}

	// Load configuration
	conf, err := config.Load("sync")
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	err = logger.InitLogger(&logger.LogConfig{
		Level:       conf.Log.Level,
		Environment: conf.Server.Env,
		ServiceName: conf.ServiceName,
	})
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.GetLogger()

	// Connect to the database server; per-tenant databases are resolved
	// lazily from here on.
	resolver, err := tenantdb.NewResolver(&conf.DB, &conf.Sync, log)
	if err != nil {
		log.Fatal("Failed to initialize tenant database resolver", zap.Error(err))
	}

	engine := syncengine.NewSynchronizer(resolver, conf.Sync.BatchSize, log)

	// Initialize JWT utility
	jwtConfig := &jwtutil.JWTConfig{
		SigningKey:      conf.JWT.SigningKey,
		ExpirationHours: conf.JWT.ExpirationHours,
	}
	jwt := jwtutil.NewJWTUtil(jwtConfig)

	syncHandler := handler.NewSyncHandler(engine)
	tenantHandler := handler.NewTenantHandler(resolver, jwt)

	// Initialize Echo framework
	e := echo.New()

	// Apply middleware
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	// Public routes
	e.GET("/health", handler.HealthCheck)
	e.GET("/sync/hello", handler.Hello)
	e.POST("/tenants/provision", tenantHandler.ProvisionTenant)
	e.GET("/tenants", tenantHandler.ListTenants)

	// Secured routes - require a verified tenant identity
	sync := e.Group("/sync")
	sync.Use(middleware.JWTAuthMiddleware(jwt))
	sync.POST("", syncHandler.SyncAll)
	sync.GET("/status", syncHandler.Status)
	sync.POST("/:collection", syncHandler.SyncCollection)

	restore := e.Group("/restore")
	restore.Use(middleware.JWTAuthMiddleware(jwt))
	restore.GET("", syncHandler.RestoreAll)
	restore.GET("/:collection", syncHandler.RestoreCollection)

	// Start server
	log.Info("Starting sync-service on port " + conf.Server.Port)
	e.Logger.Fatal(e.Start(":" + conf.Server.Port))
}
