package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"nutrition-bot/internal/app"
	"nutrition-bot/internal/archive"
	"nutrition-bot/internal/classifier"
	"nutrition-bot/internal/config"
	"nutrition-bot/internal/database"
	"nutrition-bot/internal/llm"
	"nutrition-bot/internal/logging"
	"nutrition-bot/internal/meal"
	"nutrition-bot/internal/metrics"
	"nutrition-bot/internal/recommend"
	"nutrition-bot/internal/report"
	"nutrition-bot/internal/telegram"
)

func main() {
	// .env is optional; deployments usually set the environment directly.
	_ = godotenv.Load()

	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := logging.New(cfg)

	ctx := context.Background()

	// 2. Initialize Infrastructure
	geminiClient, err := llm.NewGeminiClient(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}
	defer geminiClient.Close()

	db, err := database.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	mealRepo := meal.NewRepository(db.SQL)
	metricsStore := metrics.NewStore(db.SQL, logger)

	var archiver classifier.ResponseArchiver
	if cfg.ArchiveDir != "" {
		store, err := archive.New(cfg.ArchiveDir)
		if err != nil {
			log.Fatalf("Failed to initialize response archive: %v", err)
		}
		archiver = store
	}

	// 3. Initialize Services
	gateway := classifier.NewService(
		geminiClient,
		classifier.NewHTTPImageFetcher(),
		metricsStore,
		archiver,
		cfg.LLMTimeout,
		logger,
	)
	reports := report.NewService(mealRepo, gateway, logger)
	recommender := recommend.NewService(mealRepo, gateway, logger)
	application := app.NewApp(gateway, mealRepo, reports, recommender, logger)

	// 4. Initialize Telegram Bot
	bot, err := telegram.NewBot(cfg, application, metricsStore, logger)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram Bot: %v", err)
	}

	// 5. Start Server with Graceful Shutdown
	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("telegram bot server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server exiting")
}
