package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pano-bot/config"
	telegram "pano-bot/internal/api"
	"pano-bot/internal/container"
	"pano-bot/internal/infrastructure/storage"
	"pano-bot/internal/infrastructure/vision"
	"pano-bot/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.TelegramToken == "" {
		log.Fatal("TELEGRAM_TOKEN is required")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	detector, err := vision.NewGoCVDetector(cfg.Stitch.Detector, cfg.Stitch.MaxFeatures)
	if err != nil {
		log.Fatalf("Failed to create detector: %v", err)
	}

	// Создаём хранилища пользователей и оценок
	userRepo := storage.NewMemoryUserRepository()
	estimateRepo := storage.NewMemoryEstimateRepository()

	// Собираем сервисы приложения
	appContainer, err := container.New(cfg, userRepo, estimateRepo, detector, nil, logger)
	if err != nil {
		log.Fatalf("Failed to build services: %v", err)
	}

	// Создаём бота
	bot, err := telegram.NewBot(cfg.TelegramToken, appContainer)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("Bot is running...")
	if err := bot.Run(ctx); err != nil {
		log.Fatalf("Bot error: %v", err)
	}
}
