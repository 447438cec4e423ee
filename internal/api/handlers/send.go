// send.go — обработчик endpoint'а доставки документа.
package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apierrors "github.com/Jhonny-Kenneth/lector-id/internal/api/errors"
	"github.com/Jhonny-Kenneth/lector-id/internal/domain/model"
)

// maxRequestBytes — лимит тела запроса: base64 документа в 8 MiB
// с запасом на JSON-обёртку.
const maxRequestBytes = 16 * 1024 * 1024

// sendRequest — тело POST /api/v1/send.
type sendRequest struct {
	PDFBase64  string `json:"pdfBase64"`
	Filename   string `json:"filename"`
	ClientName string `json:"clientName"`
	SenderKey  string `json:"senderKey"`
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Text       string `json:"text"`
	HTML       string `json:"html"`
}

// DocumentSender — интерфейс диспетчера доставки для handler'а.
type DocumentSender interface {
	Send(ctx context.Context, req *model.DeliveryRequest) *model.DeliveryOutcome
}

// SendHandler реализует endpoint доставки POST /api/v1/send.
type SendHandler struct {
	dispatcher DocumentSender
	logger     *slog.Logger
}

// NewSendHandler создаёт обработчик endpoint'а доставки.
func NewSendHandler(dispatcher DocumentSender, logger *slog.Logger) *SendHandler {
	return &SendHandler{
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("handler", "send")),
	}
}

// Send обрабатывает POST /api/v1/send.
// Тело — JSON с документом в base64; ответ — всегда {ok, message, errorId}.
func (h *SendHandler) Send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorID := uuid.New().String()

		// Срезанное MaxBytesReader тело — это превышение лимита, не мусор
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.logger.Warn("Тело запроса превышает лимит",
				slog.String("error_id", errorID),
				slog.Int64("limit_bytes", maxErr.Limit),
			)
			apierrors.PayloadTooLarge(w, errorID, "El PDF supera el limite de 8MB.")
			return
		}

		h.logger.Warn("Некорректное тело запроса",
			slog.String("error_id", errorID),
			slog.String("error", err.Error()),
		)
		apierrors.ValidationError(w, errorID, "Faltan datos para enviar el PDF.")
		return
	}

	document, err := base64.StdEncoding.DecodeString(req.PDFBase64)
	if err != nil {
		errorID := uuid.New().String()
		h.logger.Warn("Документ не является корректным base64",
			slog.String("error_id", errorID),
			slog.String("error", err.Error()),
		)
		apierrors.ValidationError(w, errorID, "Faltan datos para enviar el PDF.")
		return
	}

	outcome := h.dispatcher.Send(r.Context(), &model.DeliveryRequest{
		Document:   document,
		Filename:   req.Filename,
		ClientName: req.ClientName,
		SenderKey:  req.SenderKey,
		To:         req.To,
		Subject:    req.Subject,
		Text:       req.Text,
		HTML:       req.HTML,
	})

	apierrors.WriteOutcome(w, outcome)
}
