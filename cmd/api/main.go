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
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/offerflow/offerflow-backend/internal/auth"
	"github.com/offerflow/offerflow-backend/internal/config"
	"github.com/offerflow/offerflow-backend/internal/documents"
	"github.com/offerflow/offerflow-backend/internal/inbox"
	"github.com/offerflow/offerflow-backend/internal/notifications"
	"github.com/offerflow/offerflow-backend/internal/tokens"
	"github.com/offerflow/offerflow-backend/internal/users"
	"github.com/offerflow/offerflow-backend/pkg/pdf"
	"github.com/offerflow/offerflow-backend/pkg/storage"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	dbURL := cfg.Database.GetDatabaseURL()
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	gormDB, err := gorm.Open(gormpostgres.Open(dbURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to open gorm connection", zap.Error(err))
	}

	ctx := context.Background()

	s3Client, err := storage.NewS3Client(ctx, cfg.AWS.Region)
	if err != nil {
		logger.Fatal("failed to create S3 client", zap.Error(err))
	}

	emailSender, err := notifications.NewSESSender(ctx, cfg.AWS.Region, cfg.Email.Sender)
	if err != nil {
		logger.Fatal("failed to create SES client", zap.Error(err))
	}

	usersRepo := users.NewRepository(db)
	docsRepo := documents.NewRepository(db)
	tokensRepo := tokens.NewRepository(db)

	inboxService, err := inbox.NewService(gormDB)
	if err != nil {
		logger.Fatal("failed to initialize inbox", zap.Error(err))
	}
	notifier := notifications.NewService(inboxService, emailSender, usersRepo, logger)
	tokensService := tokens.NewService(tokensRepo, cfg.Tokens.DocumentTokenTTL, logger)

	storageProvider := documents.NewStorageProvider(s3Client, cfg.AWS.DocumentsBucket, cfg.AWS.PresignExpiry)
	docsService := documents.NewService(
		docsRepo, usersRepo, storageProvider, tokensService, notifier,
		pdf.NewGenerator(), logger, cfg.Email.FrontendURL,
	)

	docsHandler := documents.NewHandler(docsService, cfg.Security.JWTSecret, logger)
	inboxHandler := inbox.NewHandler(inboxService, logger)

	router := gin.Default()

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.Email.FrontendURL)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	api := router.Group("/api/v1")
	api.Use(auth.Middleware(cfg.Security.JWTSecret, usersRepo, logger))
	{
		docsHandler.RegisterRoutes(api)
		inboxHandler.RegisterRoutes(api)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.Int("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
