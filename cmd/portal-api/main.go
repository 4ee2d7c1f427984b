package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"signing-portal/signing-portal-backend/internal/config"
	"signing-portal/signing-portal-backend/internal/documents"
	"signing-portal/signing-portal-backend/internal/notifications"
	"signing-portal/signing-portal-backend/internal/notifications/websocket"
	"signing-portal/signing-portal-backend/internal/placement"
	"signing-portal/signing-portal-backend/internal/session"
	"signing-portal/signing-portal-backend/pkg/security"
	"signing-portal/signing-portal-backend/pkg/storage"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		boot, bootErr := zap.NewDevelopment()
		if bootErr != nil {
			panic(err)
		}
		boot.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	tokens, err := security.NewTokenIssuer(cfg.Security.JWTSecret, cfg.Security.TokenTTL.Std())
	if err != nil {
		logger.Fatal("Failed to create token issuer", zap.Error(err))
	}

	// Sessions
	store := session.NewStore(session.StoreConfig{
		TTL:           cfg.Session.TTL.Std(),
		SweepSchedule: cfg.Session.SweepSchedule,
		PadWidth:      cfg.Session.PadWidth,
		PadHeight:     cfg.Session.PadHeight,
		BrushWidth:    cfg.Session.BrushWidth,
	}, logger)
	if err := store.Start(); err != nil {
		logger.Fatal("Failed to start session sweeper", zap.Error(err))
	}
	defer store.Stop()

	// Notifications
	sockets := websocket.NewManager(logger)
	defer sockets.Close()
	notifier := notifications.NewService(sockets, logger)

	// Documents
	cache := documents.NewPreviewCache(cfg.Signing.PreviewTTL.Std())
	defer cache.Close()

	var opts []documents.ServiceOption
	if cfg.Archive.Enabled {
		client, err := storage.NewS3Client(context.Background(), storage.S3Options{
			Region:          cfg.Archive.Region,
			Endpoint:        cfg.Archive.Endpoint,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
			UsePathStyle:    cfg.Archive.UsePathStyle,
		})
		if err != nil {
			logger.Fatal("Failed to create S3 client", zap.Error(err))
		}
		opts = append(opts, documents.WithArchiver(
			documents.NewS3Archiver(client, cfg.Archive.Bucket, cfg.Archive.Prefix, cfg.Archive.LinkTTL.Std()),
		))
		logger.Info("Archiving signed documents", zap.String("bucket", cfg.Archive.Bucket))
	}

	docService := documents.NewService(store, notifier, cache, documents.Config{
		RenderScale:    cfg.Signing.RenderScale,
		PreviewScale:   cfg.Signing.PreviewScale,
		BoundsPolicy:   placement.ParseBoundsPolicy(cfg.Signing.BoundsPolicy),
		MaxUploadBytes: cfg.Signing.MaxUploadBytes,
	}, logger, opts...)
	docHandler := documents.NewHandler(docService, store, tokens, notifier, sockets, logger)

	store.OnEvict(func(id string) {
		docService.Forget(id)
		notifier.Forget(id)
		sockets.DisconnectSession(id)
	})

	// Setup Router
	if cfg.Logging.Level == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Placements-Applied, X-Placements-Skipped, X-Archive-URL")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	{
		docHandler.RegisterRoutes(api)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":      "healthy",
			"sessions":    store.Len(),
			"connections": sockets.GetConnectionCount(),
			"timestamp":   time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
