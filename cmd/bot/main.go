package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/serpens2/weather-bot/internal/app"
	"github.com/serpens2/weather-bot/internal/config"
	"github.com/serpens2/weather-bot/internal/logger"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	dotenv := config.LoadDotenv()

	cfg, err := config.Load()
	if err != nil {
		// No logger yet; exit immediately.
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()
	log.Debug("configuration loaded", zap.Bool("dotenv", dotenv))

	application, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("app init failed", zap.Error(err))
	}

	if err := application.Run(context.Background()); err != nil {
		log.Fatal("app run failed", zap.Error(err))
	}
}
