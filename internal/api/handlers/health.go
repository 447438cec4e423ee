// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Jhonny-Kenneth/lector-id/internal/config"
)

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	cfg     *config.Config
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		cfg:     cfg,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "lector-id",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady обрабатывает GET /health/ready.
// Полнота конфигурации транспорта диагностируется по-запросно
// диспетчером, поэтому её отсутствие даёт статус degraded, а не отказ:
// сервис продолжает отвечать на endpoint доставки осмысленными ошибками.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"

	smtpCheck := map[string]any{"status": "ok"}
	if h.cfg.SMTPHost == "" || h.cfg.DefaultSender.User == "" || h.cfg.DefaultSender.Pass == "" {
		smtpCheck["status"] = "incomplete"
		overallStatus = "degraded"
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "lector-id",
		"checks": map[string]any{
			"smtp_config": smtpCheck,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
