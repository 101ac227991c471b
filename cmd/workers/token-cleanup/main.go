package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/offerflow/offerflow-backend/internal/config"
	"github.com/offerflow/offerflow-backend/internal/tokens"
)

// Periodically removes expired invitation tokens.
func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	service := tokens.NewService(tokens.NewRepository(db), cfg.Tokens.DocumentTokenTTL, logger)

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Tokens.CleanupSchedule, func() {
		if _, err := service.CleanupExpired(context.Background()); err != nil {
			logger.Error("token cleanup failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("invalid cleanup schedule", zap.Error(err))
	}

	scheduler.Start()
	logger.Info("token cleanup worker started", zap.String("schedule", cfg.Tokens.CleanupSchedule))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	<-scheduler.Stop().Done()
	logger.Info("token cleanup worker exiting")
}
