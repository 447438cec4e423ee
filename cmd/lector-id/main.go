// Точка входа lector-id — сервиса доставки составленных документов.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Jhonny-Kenneth/lector-id/internal/api/handlers"
	"github.com/Jhonny-Kenneth/lector-id/internal/config"
	"github.com/Jhonny-Kenneth/lector-id/internal/dispatch"
	"github.com/Jhonny-Kenneth/lector-id/internal/server"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Сервис доставки запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("smtp_host", cfg.SMTPHost),
		slog.Int("smtp_port", cfg.SMTPPort),
		slog.Int("sender_profiles", len(cfg.SenderProfiles)),
	)

	if cfg.SMTPTLSSkipVerify {
		logger.Warn("Проверка TLS-сертификата SMTP отключена конфигурацией")
	}

	// Диспетчер доставки поверх реального SMTP-транспорта
	dispatcher := dispatch.New(cfg, dispatch.NewMailTransport, logger)

	// Handlers
	sendHandler := handlers.NewSendHandler(dispatcher, logger)
	healthHandler := handlers.NewHealthHandler(cfg)
	apiHandler := handlers.NewAPIHandler(sendHandler, healthHandler)

	// Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Сервис доставки остановлен")
}
