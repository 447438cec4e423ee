// handler.go — APIHandler собирает доменные handlers в один объект
// и регистрирует маршруты сервиса.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIHandler — единая точка регистрации всех endpoints сервиса.
type APIHandler struct {
	send   *SendHandler
	health *HealthHandler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(send *SendHandler, health *HealthHandler) *APIHandler {
	return &APIHandler{
		send:   send,
		health: health,
	}
}

// Register монтирует маршруты сервиса на роутер.
func (h *APIHandler) Register(router chi.Router) {
	router.Post("/api/v1/send", h.send.Send)
	router.Get("/health/live", h.health.HealthLive)
	router.Get("/health/ready", h.health.HealthReady)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
}
