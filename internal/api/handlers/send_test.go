package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/Jhonny-Kenneth/lector-id/internal/api/errors"
	"github.com/Jhonny-Kenneth/lector-id/internal/api/middleware"
	"github.com/Jhonny-Kenneth/lector-id/internal/config"
	"github.com/Jhonny-Kenneth/lector-id/internal/dispatch"
	"github.com/Jhonny-Kenneth/lector-id/internal/domain/model"
)

// fakeSender — фальшивый диспетчер, фиксирующий запросы.
type fakeSender struct {
	requests []*model.DeliveryRequest
	outcome  *model.DeliveryOutcome
}

func (f *fakeSender) Send(_ context.Context, req *model.DeliveryRequest) *model.DeliveryOutcome {
	f.requests = append(f.requests, req)
	return f.outcome
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type outcomeBody struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	ErrorID string `json:"errorId"`
}

func decodeOutcome(t *testing.T, rec *httptest.ResponseRecorder) outcomeBody {
	t.Helper()
	var body outcomeBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("разбор тела ответа: %v (%s)", err, rec.Body.String())
	}
	return body
}

// TestSend_OK проверяет успешную доставку через endpoint.
func TestSend_OK(t *testing.T) {
	sender := &fakeSender{outcome: &model.DeliveryOutcome{
		OK:         true,
		Message:    "Correo enviado correctamente.",
		ErrorID:    "id-1",
		StatusCode: http.StatusOK,
		Code:       apierrors.CodeOK,
	}}
	h := NewSendHandler(sender, testLogger())

	payload, _ := json.Marshal(map[string]string{
		"pdfBase64":  base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
		"filename":   "cedula_Ana_2026-09-01_10-30.pdf",
		"clientName": "Ana",
		"senderKey":  "hostessvip",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/send", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Send(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус: %d, тело: %s", rec.Code, rec.Body.String())
	}
	body := decodeOutcome(t, rec)
	if !body.OK || body.ErrorID != "id-1" {
		t.Errorf("тело ответа: %+v", body)
	}
	if len(sender.requests) != 1 {
		t.Fatalf("диспетчер должен вызываться ровно один раз, вызван %d", len(sender.requests))
	}
	got := sender.requests[0]
	if string(got.Document) != "%PDF-1.4" || got.SenderKey != "hostessvip" {
		t.Errorf("запрос диспетчеру: %+v", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: %q", ct)
	}
	if got := rec.Header().Get("X-Error-Id"); got != "id-1" {
		t.Errorf("X-Error-Id: %q", got)
	}
}

// TestSend_BadJSON проверяет 400 для некорректного JSON без вызова диспетчера.
func TestSend_BadJSON(t *testing.T) {
	sender := &fakeSender{}
	h := NewSendHandler(sender, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/send", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Send(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус: %d", rec.Code)
	}
	body := decodeOutcome(t, rec)
	if body.OK || body.Message != "Faltan datos para enviar el PDF." || body.ErrorID == "" {
		t.Errorf("тело ответа: %+v", body)
	}
	if len(sender.requests) != 0 {
		t.Error("диспетчер не должен вызываться для некорректного тела")
	}
}

// TestSend_BadBase64 проверяет 400 для некорректного base64.
func TestSend_BadBase64(t *testing.T) {
	sender := &fakeSender{}
	h := NewSendHandler(sender, testLogger())

	payload, _ := json.Marshal(map[string]string{
		"pdfBase64": "$$$not-base64$$$",
		"filename":  "doc.pdf",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/send", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Send(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус: %d", rec.Code)
	}
	if len(sender.requests) != 0 {
		t.Error("диспетчер не должен вызываться для некорректного base64")
	}
}

// failFactory — фабрика транспорта, отмечающая любое обращение к сети.
func failFactory(t *testing.T) dispatch.TransportFactory {
	return func(_ dispatch.TransportSettings) (dispatch.Transport, error) {
		t.Error("транспорт не должен создаваться")
		return nil, nil
	}
}

// TestSend_OversizedDocument проверяет 413 для документа сверх лимита:
// реальный диспетчер, без сетевых побочных эффектов.
func TestSend_OversizedDocument(t *testing.T) {
	cfg := &config.Config{
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		DefaultSender: model.SenderProfile{
			User: "u@example.com", Pass: "s", From: "u@example.com",
		},
		DefaultRecipient: "archivo@example.com",
	}
	d := dispatch.New(cfg, failFactory(t), testLogger())
	h := NewSendHandler(d, testLogger())

	oversized := make([]byte, dispatch.MaxDocumentBytes+1)
	payload, _ := json.Marshal(map[string]string{
		"pdfBase64": base64.StdEncoding.EncodeToString(oversized),
		"filename":  "doc.pdf",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/send", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.Send(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("статус: %d", rec.Code)
	}
	body := decodeOutcome(t, rec)
	if body.Message != "El PDF supera el limite de 8MB." {
		t.Errorf("сообщение: %q", body.Message)
	}
}

// TestSend_BodyOverLimit проверяет 413 для тела сверх лимита чтения:
// срезанный JSON классифицируется как превышение размера, не как мусор.
func TestSend_BodyOverLimit(t *testing.T) {
	sender := &fakeSender{}
	h := NewSendHandler(sender, testLogger())

	var body bytes.Buffer
	body.WriteString(`{"pdfBase64":"`)
	body.WriteString(strings.Repeat("A", maxRequestBytes+1024))
	body.WriteString(`","filename":"doc.pdf"}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/send", &body)
	rec := httptest.NewRecorder()
	h.Send(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("статус: %d", rec.Code)
	}
	outcome := decodeOutcome(t, rec)
	if outcome.OK || outcome.Message != "El PDF supera el limite de 8MB." || outcome.ErrorID == "" {
		t.Errorf("тело ответа: %+v", outcome)
	}
	if len(sender.requests) != 0 {
		t.Error("диспетчер не должен вызываться для тела сверх лимита")
	}
}

// TestRoutes_Preflight проверяет, что OPTIONS завершается 204
// с CORS-заголовками, не доходя до обработчиков.
func TestRoutes_Preflight(t *testing.T) {
	sender := &fakeSender{}
	api := NewAPIHandler(NewSendHandler(sender, testLogger()), NewHealthHandler(&config.Config{}))

	router := chi.NewRouter()
	router.Use(middleware.CORS())
	api.Register(router)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/send", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("статус preflight: %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("отсутствует заголовок Access-Control-Allow-Origin")
	}
	if len(sender.requests) != 0 {
		t.Error("preflight не должен доходить до диспетчера")
	}
}

// TestHealth_Endpoints проверяет live/ready.
func TestHealth_Endpoints(t *testing.T) {
	h := NewHealthHandler(&config.Config{
		SMTPHost: "smtp.example.com",
		DefaultSender: model.SenderProfile{
			User: "u@example.com", Pass: "s", From: "u@example.com",
		},
	})

	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("live: статус %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ready: статус %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("разбор тела: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("статус ready: %v", body["status"])
	}

	// Неполная конфигурация транспорта — degraded, но не отказ
	degraded := NewHealthHandler(&config.Config{})
	rec = httptest.NewRecorder()
	degraded.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("degraded ready: статус %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("разбор тела: %v", err)
	}
	if body["status"] != "degraded" {
		t.Errorf("статус degraded ready: %v", body["status"])
	}
}
