package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// logLine — разобранная JSON-запись лога запроса.
type logLine struct {
	Level   string `json:"level"`
	Msg     string `json:"msg"`
	Status  int    `json:"status"`
	ErrorID string `json:"error_id"`
}

func captureLog(t *testing.T, handler http.Handler, req *http.Request) logLine {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	rec := httptest.NewRecorder()
	RequestLogger(logger)(handler).ServeHTTP(rec, req)

	var line logLine
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("разбор строки лога: %v (%s)", err, buf.String())
	}
	return line
}

// TestRequestLogger_ErrorID проверяет, что корреляционный идентификатор
// из заголовка X-Error-Id попадает в запись лога запроса.
func TestRequestLogger_ErrorID(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Error-Id", "corr-42")
		w.WriteHeader(http.StatusBadRequest)
	})

	line := captureLog(t, handler, httptest.NewRequest(http.MethodPost, "/api/v1/send", nil))

	if line.Msg != "HTTP запрос" || line.Status != http.StatusBadRequest {
		t.Errorf("запись: %+v", line)
	}
	if line.Level != "WARN" {
		t.Errorf("уровень для 4xx: %q", line.Level)
	}
	if line.ErrorID != "corr-42" {
		t.Errorf("error_id: %q", line.ErrorID)
	}
}

// TestRequestLogger_NoErrorID проверяет запись без идентификатора:
// атрибут error_id не добавляется.
func TestRequestLogger_NoErrorID(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	line := captureLog(t, handler, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if line.Level != "INFO" || line.Status != http.StatusOK {
		t.Errorf("запись: %+v", line)
	}
	if line.ErrorID != "" {
		t.Errorf("error_id не ожидался, получено %q", line.ErrorID)
	}
}
