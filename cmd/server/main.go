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
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/sharpline/sharpline-go/internal/api"
	"github.com/sharpline/sharpline-go/internal/api/handlers"
	"github.com/sharpline/sharpline-go/internal/config"
	"github.com/sharpline/sharpline-go/internal/database"
	"github.com/sharpline/sharpline-go/internal/logging"
	"github.com/sharpline/sharpline-go/internal/scheduler"
	"github.com/sharpline/sharpline-go/internal/services"
)

func main() {
	// .env is optional; real deployments use environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	pool := db.Pool

	classifier := services.NewPreGameTimingClassifier(cfg.Timing)
	normalizer := services.NewQuoteNormalizer(pool, cfg.Ingest, logger)
	movements := services.NewMovementCalculator(pool, cfg.Movement, cfg.Ingest, classifier, logger)
	pairing := services.NewSidePairingMatcher(pool, cfg.Pairing, logger)

	rlm := services.NewRLMDetector(cfg.RLM, logger)
	steam := services.NewSteamDetector(cfg.Steam, logger)
	arbitrage := services.NewArbitrageDetector(cfg.Arbitrage, logger)

	detection := services.NewDetectionService(pool, cfg.Detection, rlm, steam, arbitrage, logger)
	if cfg.Detection.Enabled {
		if err := detection.Start(); err != nil {
			logger.Fatalf("Failed to start detection service: %v", err)
		}
		defer detection.Stop()
	}

	resolver := services.NewOutcomeResolver(pool, logger)
	aggregator := services.NewPerformanceAggregator(pool, redis, cfg.Performance, logger)
	recommendations := services.NewRecommendationService(pool, redis, cfg.Recommendation, cfg.Performance, logger)

	sched := scheduler.New(cfg.Scheduler, resolver, aggregator, cfg.Performance.DefaultPeriod, logger)
	if err := sched.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	api.SetupRoutes(router, db, redis, api.Handlers{
		Ingest:      handlers.NewIngestHandler(pool, normalizer, movements, logger),
		Movement:    handlers.NewMovementHandler(pool, logger),
		Opportunity: handlers.NewOpportunityHandler(pool, logger),
		Performance: handlers.NewPerformanceHandler(pool, recommendations, cfg.Performance.DefaultPeriod, logger),
		Pair:        handlers.NewPairHandler(pool, pairing, logger),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Infof("Server starting on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
