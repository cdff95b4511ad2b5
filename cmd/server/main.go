// Package main — точка входа сервиса наград и рейтингов.
// Загружает конфигурацию, собирает приложение и запускает HTTP API.
// Поддерживает graceful shutdown по SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/rewards-engine/internal/app"
	"serotonyl.ru/rewards-engine/internal/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	setupLogging()

	log.Info("=== Сервис наград запускается ===")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}

	if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.AppEnv == "production" {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Не удалось инициализировать приложение")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- application.Run(ctx) }()

	log.Info("=== Сервис готов к работе ===")

	select {
	case <-ctx.Done():
		log.Info("Получен сигнал остановки, останавливаемся...")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("Сервис завершился с ошибкой")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	application.Shutdown(shutdownCtx)

	log.Info("=== Сервис остановлен ===")
}

// setupLogging настраивает формат логов.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
