package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"buildflow/project-portal/project-portal-backend/internal/attachments"
	"buildflow/project-portal/project-portal-backend/internal/config"
	"buildflow/project-portal/project-portal-backend/internal/notifications/websocket"
	"buildflow/project-portal/project-portal-backend/internal/projects"
	"buildflow/project-portal/project-portal-backend/internal/reference"
	"buildflow/project-portal/project-portal-backend/internal/reports/export"
	"buildflow/project-portal/project-portal-backend/internal/schema"
	"buildflow/project-portal/project-portal-backend/pkg/storage"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Connect to database
	logger.Info("Connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.String("db", cfg.Database.DBName))
	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	// Reference tables and the activity log go through gorm on the same pool
	orm, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to initialize gorm", zap.Error(err))
	}
	if err := orm.AutoMigrate(&projects.ProjectActivity{}); err != nil {
		logger.Fatal("Failed to migrate activity table", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Attachment storage
	s3Client, err := storage.NewS3Client(ctx, storage.S3Options{
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UsePathStyle:    cfg.Storage.UsePathStyle,
	})
	if err != nil {
		logger.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	downloadURL := strings.TrimRight(cfg.Server.PublicURL, "/") + "/api/v1" + attachments.RoutePath
	store := attachments.NewStore(s3Client, cfg.Storage.Bucket, cfg.Storage.PublicBaseURL, downloadURL, logger)

	// Workflow
	registry := schema.NewRegistry()
	gate := projects.NewSecretGate(cfg.Security.AdminPassword)
	if !gate.Configured() {
		logger.Warn("ADMIN_PASSWORD is not set; admin create and delete are disabled")
	}
	repo := projects.NewRepository(db, orm, registry)
	engine := projects.NewEngine(registry, store, repo, gate, logger)

	cache := reference.NewCache(repo, cfg.Reference.Locale, logger)
	if _, err := cache.Refresh(ctx); err != nil {
		logger.Warn("Initial reference load failed; retrying on first use", zap.Error(err))
	}
	if err := cache.Start(ctx, cfg.Reference.RefreshSchedule); err != nil {
		logger.Fatal("Failed to schedule reference refresh", zap.Error(err))
	}
	defer cache.Stop()

	wsManager := websocket.NewManager(cfg.Server.AllowedOrigins, logger)
	defer wsManager.Close()

	service := projects.NewService(repo, engine, registry, cache, wsManager, gate, cfg.Security.SessionTTL, logger)

	janitor := cron.New()
	if _, err := janitor.AddFunc("@every 5m", func() {
		if n := service.PruneSessions(); n > 0 {
			logger.Info("Pruned idle sessions", zap.Int("count", n))
		}
	}); err != nil {
		logger.Fatal("Failed to schedule session pruning", zap.Error(err))
	}
	janitor.Start()
	defer janitor.Stop()

	projectsHandler := projects.NewHandler(service, export.Exporter{FontPath: cfg.Export.FontPath}, cfg.Server.MaxUploadBytes, logger)
	attachmentsHandler := attachments.NewHandler(store, logger)

	// Setup Router
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	router.MaxMultipartMemory = cfg.Server.MaxUploadBytes

	// CORS Middleware
	router.Use(corsMiddleware(cfg.Server.AllowedOrigins))

	cookieStore := cookie.NewStore([]byte(cfg.Security.SessionSecret))
	cookieStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.Security.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Security.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	// Register Routes
	api := router.Group("/api/v1")
	{
		attachmentsHandler.RegisterRoutes(api)
		api.GET("/ws", func(c *gin.Context) {
			if _, err := wsManager.HandleConnection(c.Writer, c.Request); err != nil {
				logger.Warn("WebSocket upgrade failed", zap.Error(err))
			}
		})

		workflow := api.Group("")
		workflow.Use(sessions.Sessions("portal_session", cookieStore))
		projectsHandler.RegisterRoutes(workflow)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if err := db.PingContext(c.Request.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":      status,
			"timestamp":   time.Now(),
			"connections": wsManager.GetConnectionCount(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
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

// corsMiddleware answers cross-origin requests from the listed origins only.
// With no origins configured the API stays same-origin.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && slices.Contains(allowed, origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, accept, origin, Cache-Control, X-Requested-With")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
			c.Writer.Header().Add("Vary", "Origin")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
