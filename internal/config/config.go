// Пакет config — загрузка и валидация конфигурации сервиса lector-id
// из переменных окружения.
//
// Конфигурация строится один раз при старте процесса и передаётся
// по ссылке в конструкторы компонентов; чтение переменных окружения
// из бизнес-логики не допускается.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Jhonny-Kenneth/lector-id/internal/domain/model"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// Хост SMTP-сервера
	SMTPHost string
	// Порт SMTP-сервера (465 — implicit TLS, иначе STARTTLS)
	SMTPPort int
	// Отключить проверку TLS-сертификата SMTP-сервера.
	// По умолчанию false: сертификат всегда проверяется.
	SMTPTLSSkipVerify bool

	// Профиль отправителя по умолчанию
	DefaultSender model.SenderProfile
	// Получатель по умолчанию
	DefaultRecipient string
	// Именованные профили отправителей, ключ — имя профиля в нижнем регистре
	SenderProfiles map[string]model.SenderProfile
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// LID_PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("LID_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("LID_PORT: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("LID_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// LID_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("LID_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LID_LOG_LEVEL: %w", err)
	}

	// LID_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("LID_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LID_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// LID_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("LID_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LID_SHUTDOWN_TIMEOUT: %w", err)
	}

	// SMTP_HOST — хост почтового транспорта.
	// Намеренно не обязателен при старте: неполнота конфигурации
	// диагностируется диспетчером на каждый запрос (IncompleteServerConfig).
	cfg.SMTPHost = getEnvDefault("SMTP_HOST", "")

	// SMTP_PORT — порт почтового транспорта (по умолчанию 587)
	cfg.SMTPPort, err = getEnvInt("SMTP_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("SMTP_PORT: %w", err)
	}
	if cfg.SMTPPort <= 0 || cfg.SMTPPort > 65535 {
		return nil, fmt.Errorf("SMTP_PORT: значение %d вне допустимого диапазона 1-65535", cfg.SMTPPort)
	}

	// SMTP_TLS_SKIP_VERIFY — отключение проверки сертификата (по умолчанию false)
	cfg.SMTPTLSSkipVerify, err = getEnvBool("SMTP_TLS_SKIP_VERIFY", false)
	if err != nil {
		return nil, fmt.Errorf("SMTP_TLS_SKIP_VERIFY: %w", err)
	}

	// Профиль отправителя по умолчанию
	cfg.DefaultSender = model.SenderProfile{
		User:     getEnvDefault("SMTP_USER", ""),
		Pass:     getEnvDefault("SMTP_PASS", ""),
		From:     getEnvDefault("EMAIL_FROM", ""),
		FromName: getEnvDefault("EMAIL_FROM_NAME", ""),
	}

	// EMAIL_TO — получатель по умолчанию
	cfg.DefaultRecipient = getEnvDefault("EMAIL_TO", "")

	// SMTP_PROFILES — именованные профили отправителей, JSON-объект:
	// {"hostessvip":{"user":"...","pass":"...","from":"...","from_name":"..."}}
	cfg.SenderProfiles, err = parseSenderProfiles(getEnvDefault("SMTP_PROFILES", ""))
	if err != nil {
		return nil, fmt.Errorf("SMTP_PROFILES: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseSenderProfiles разбирает JSON-объект именованных профилей.
// Ключи нормализуются в нижний регистр с обрезкой пробелов.
func parseSenderProfiles(raw string) (map[string]model.SenderProfile, error) {
	profiles := make(map[string]model.SenderProfile)
	if raw == "" {
		return profiles, nil
	}

	var parsed map[string]model.SenderProfile
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("некорректный JSON: %w", err)
	}

	for key, profile := range parsed {
		normalized := strings.ToLower(strings.TrimSpace(key))
		if normalized == "" {
			return nil, fmt.Errorf("пустое имя профиля")
		}
		if _, exists := profiles[normalized]; exists {
			return nil, fmt.Errorf("дублирующееся имя профиля: %q", normalized)
		}
		profiles[normalized] = profile
	}
	return profiles, nil
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
