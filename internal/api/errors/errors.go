// Пакет errors — конструкторы стандартных ответов доставки.
// Единый формат тела: {"ok": ..., "message": "...", "errorId": "..."}.
// Все HTTP-ответы endpoint'а доставки должны использовать WriteOutcome.
package errors //nolint:revive // конфликт имени со stdlib осознан, пакет живёт под internal/api

import (
	"encoding/json"
	"net/http"

	"github.com/Jhonny-Kenneth/lector-id/internal/domain/model"
)

// Машиночитаемые коды результатов доставки.
const (
	CodeOK                     = "OK"
	CodeMissingFields          = "MISSING_FIELDS"
	CodePayloadTooLarge        = "PAYLOAD_TOO_LARGE"
	CodeIncompleteServerConfig = "INCOMPLETE_SERVER_CONFIG"
	CodeMissingRecipient       = "MISSING_RECIPIENT"
	CodeInvalidRecipient       = "INVALID_RECIPIENT"
	CodeMissingFromAddress     = "MISSING_FROM_ADDRESS"
	CodeTransportFailed        = "TRANSPORT_FAILED"
	CodeDeliveryFailed         = "DELIVERY_FAILED"
	CodeInternalError          = "INTERNAL_ERROR"
)

// outcomeBody — структура тела ответа endpoint'а доставки.
type outcomeBody struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	ErrorID string `json:"errorId"`
}

// WriteOutcome сериализует DeliveryOutcome в HTTP-ответ.
// Статус-код берётся из результата; тело всегда в едином формате.
// Корреляционный идентификатор дублируется в заголовке X-Error-Id,
// откуда его подхватывает логирование запросов.
func WriteOutcome(w http.ResponseWriter, outcome *model.DeliveryOutcome) {
	w.Header().Set("Content-Type", "application/json")
	if outcome.ErrorID != "" {
		w.Header().Set("X-Error-Id", outcome.ErrorID)
	}
	w.WriteHeader(outcome.StatusCode)
	_ = json.NewEncoder(w).Encode(outcomeBody{
		OK:      outcome.OK,
		Message: outcome.Message,
		ErrorID: outcome.ErrorID,
	})
}

// ValidationError — 400 некорректные входные данные (до вызова диспетчера).
func ValidationError(w http.ResponseWriter, errorID, message string) {
	WriteOutcome(w, &model.DeliveryOutcome{
		OK:         false,
		Message:    message,
		ErrorID:    errorID,
		StatusCode: http.StatusBadRequest,
		Code:       CodeMissingFields,
	})
}

// PayloadTooLarge — 413 тело запроса превышает лимит.
func PayloadTooLarge(w http.ResponseWriter, errorID, message string) {
	WriteOutcome(w, &model.DeliveryOutcome{
		OK:         false,
		Message:    message,
		ErrorID:    errorID,
		StatusCode: http.StatusRequestEntityTooLarge,
		Code:       CodePayloadTooLarge,
	})
}

// InternalError — 500 непредвиденная ошибка обработчика.
func InternalError(w http.ResponseWriter, errorID, message string) {
	WriteOutcome(w, &model.DeliveryOutcome{
		OK:         false,
		Message:    message,
		ErrorID:    errorID,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternalError,
	})
}
