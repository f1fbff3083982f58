package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/docvault/docvault/internal/auth"
	"github.com/docvault/docvault/internal/catalog"
	"github.com/docvault/docvault/internal/common"
	"github.com/docvault/docvault/internal/storage"
	"github.com/docvault/docvault/internal/upload"
	"github.com/docvault/docvault/pkg/config"
)

const uploadBasePath = "/api/v1/uploads"

func main() {
	// Load configuration
	cfg := config.LoadFromEnv()
	cfg.Logging.SetupLogging()

	log.Info().Msg("Starting docvault API")

	if err := cfg.Upload.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid upload configuration")
	}

	// Initialize database
	db, err := common.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Initialize cache
	cache, err := common.NewCache(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer cache.Close()

	// Initialize storage
	storageFactory := storage.NewStorageFactory(&cfg.Storage)
	chunkStore, err := storageFactory.CreateStorage()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	// Initialize services
	catalogService := catalog.NewService(db, cache)
	sessionStore := upload.NewSessionStore(db)
	uploadService := upload.NewService(sessionStore, chunkStore, catalogService, &cfg.Upload)

	// Setup HTTP server
	router := setupRouter(cfg, uploadService)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the expiration reaper bound to the process lifetime
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	reaper := upload.NewReaper(uploadService, cfg.Upload.CleanupInterval)
	if cfg.Upload.Enabled {
		reaper.Start(reaperCtx)
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	stopReaper()
	if cfg.Upload.Enabled {
		reaper.Wait()
	}

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	} else {
		log.Info().Msg("Server shutdown complete")
	}
}

func setupRouter(cfg *config.Config, uploadService *upload.Service) *gin.Engine {
	// Set Gin mode based on environment
	if zerolog.GlobalLevel() == zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "docvault-api",
			"time":    time.Now().UTC(),
		})
	})

	if cfg.Upload.Enabled {
		uploads := router.Group(uploadBasePath)
		uploads.Use(auth.Middleware(&cfg.Auth))
		upload.NewHandler(uploadService, uploadBasePath).RegisterRoutes(uploads)
	} else {
		log.Info().Msg("Resumable uploads disabled")
	}

	return router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS, HEAD")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Upload-Length, Upload-Offset, Upload-Metadata, Tus-Resumable")
		c.Header("Access-Control-Expose-Headers", "Location, Upload-Offset, Upload-Length, Tus-Resumable, Tus-Version, Tus-Extension, Tus-Max-Size")

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
