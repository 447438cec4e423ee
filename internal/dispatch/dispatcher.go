// Пакет dispatch — диспетчер доставки составленного документа.
//
// Один вызов Send — один DeliveryOutcome, всегда, при успехе и при ошибке.
// Валидация строго упорядочена и fail-fast: первая несработавшая проверка
// определяет результат, сетевых побочных эффектов до конца валидации нет.
// Каждая строка лога вызова несёт один и тот же корреляционный
// идентификатор; секрет транспорта в логи не попадает никогда.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/Jhonny-Kenneth/lector-id/internal/api/errors"
	"github.com/Jhonny-Kenneth/lector-id/internal/api/middleware"
	"github.com/Jhonny-Kenneth/lector-id/internal/config"
	"github.com/Jhonny-Kenneth/lector-id/internal/domain/model"
)

// MaxDocumentBytes — жёсткий лимит размера документа (8 MiB).
const MaxDocumentBytes = 8 * 1024 * 1024

// attachmentMIME — фиксированный MIME-тип вложения составленного документа.
const attachmentMIME = "application/pdf"

// recipientRe — минимальная проверка формы адреса local@domain.tld.
var recipientRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Dispatcher — диспетчер доставки. Не хранит изменяемого состояния между
// запросами: конфигурация только читается, транспорт создаётся на каждый
// вызов, поэтому параллельные Send не требуют взаимного исключения.
type Dispatcher struct {
	cfg          *config.Config
	newTransport TransportFactory
	logger       *slog.Logger
	now          func() time.Time
}

// New создаёт диспетчер доставки.
func New(cfg *config.Config, factory TransportFactory, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:          cfg,
		newTransport: factory,
		logger:       logger.With(slog.String("component", "dispatcher")),
		now:          time.Now,
	}
}

// Send выполняет один запрос доставки.
//
// Порядок проверок (первая ошибка завершает вызов):
//  1. Обязательные поля (байты документа, имя файла)
//  2. Размер документа ≤ 8 MiB
//  3. Полнота конфигурации транспорта {host, port, user, secret}
//  4. Получатель задан и имеет форму адреса
//  5. Адрес отправителя непуст
//
// Только после всех проверок открывается соединение с транспортом:
// сначала handshake/верификация (ошибка — 502, "сервис отверг нас"),
// затем отправка (ошибка — 500). Соединение освобождается на каждом
// пути выхода, включая отмену контекста.
func (d *Dispatcher) Send(ctx context.Context, req *model.DeliveryRequest) *model.DeliveryOutcome {
	errorID := uuid.New().String()
	logger := d.logger.With(slog.String("error_id", errorID))

	outcome := d.validate(req, errorID, logger)
	if outcome == nil {
		outcome = d.deliver(ctx, req, errorID, logger)
	}

	middleware.DispatchTotal.WithLabelValues(outcome.Code).Inc()
	return outcome
}

// validate прогоняет упорядоченный конвейер проверок.
// Возвращает nil, когда все проверки пройдены.
func (d *Dispatcher) validate(req *model.DeliveryRequest, errorID string, logger *slog.Logger) *model.DeliveryOutcome {
	// 1. Обязательные поля
	if len(req.Document) == 0 || req.Filename == "" {
		logger.Warn("Отклонено: отсутствуют обязательные поля",
			slog.Bool("has_document", len(req.Document) > 0),
			slog.Bool("has_filename", req.Filename != ""),
		)
		return d.failure(errorID, http.StatusBadRequest, apierrors.CodeMissingFields,
			"Faltan datos para enviar el PDF.")
	}

	// 2. Размер документа
	if len(req.Document) > MaxDocumentBytes {
		logger.Warn("Отклонено: документ превышает лимит",
			slog.Int("size_bytes", len(req.Document)),
			slog.Int("limit_bytes", MaxDocumentBytes),
		)
		return d.failure(errorID, http.StatusRequestEntityTooLarge, apierrors.CodePayloadTooLarge,
			"El PDF supera el limite de 8MB.")
	}

	// 3. Полнота конфигурации транспорта
	profile := ResolveProfile(d.cfg, req.SenderKey)
	if d.cfg.SMTPHost == "" || profile.User == "" || profile.Pass == "" {
		logger.Error("Отклонено: неполная конфигурация транспорта",
			slog.String("sender_key", req.SenderKey),
			slog.Bool("host_set", d.cfg.SMTPHost != ""),
			slog.Bool("user_set", profile.User != ""),
			slog.Bool("secret_present", profile.Pass != ""),
		)
		return d.failure(errorID, http.StatusBadRequest, apierrors.CodeIncompleteServerConfig,
			"Faltan variables SMTP en el servidor.")
	}

	// 4. Получатель
	to := strings.TrimSpace(req.To)
	if to == "" {
		to = strings.TrimSpace(d.cfg.DefaultRecipient)
	}
	if to == "" {
		logger.Warn("Отклонено: не задан получатель")
		return d.failure(errorID, http.StatusBadRequest, apierrors.CodeMissingRecipient,
			"Falta el destinatario del correo.")
	}
	if !recipientRe.MatchString(to) {
		logger.Warn("Отклонено: получатель не похож на адрес", slog.String("to", to))
		return d.failure(errorID, http.StatusBadRequest, apierrors.CodeInvalidRecipient,
			"El destinatario no es una direccion de correo valida.")
	}

	// 5. Адрес отправителя
	if strings.TrimSpace(profile.From) == "" {
		logger.Error("Отклонено: не задан адрес отправителя",
			slog.String("sender_key", req.SenderKey),
		)
		return d.failure(errorID, http.StatusBadRequest, apierrors.CodeMissingFromAddress,
			"Falta la direccion del remitente.")
	}

	return nil
}

// deliver открывает транспорт, верифицирует соединение и отправляет письмо.
func (d *Dispatcher) deliver(ctx context.Context, req *model.DeliveryRequest, errorID string, logger *slog.Logger) *model.DeliveryOutcome {
	profile := ResolveProfile(d.cfg, req.SenderKey)
	to := strings.TrimSpace(req.To)
	if to == "" {
		to = strings.TrimSpace(d.cfg.DefaultRecipient)
	}

	transport, err := d.newTransport(TransportSettings{
		Host:          d.cfg.SMTPHost,
		Port:          d.cfg.SMTPPort,
		User:          profile.User,
		Pass:          profile.Pass,
		SkipTLSVerify: d.cfg.SMTPTLSSkipVerify,
	})
	if err != nil {
		logger.Error("Не удалось создать транспорт", slog.String("error", err.Error()))
		return d.failure(errorID, http.StatusBadGateway, apierrors.CodeTransportFailed,
			"No fue posible conectar con el servidor de correo.")
	}
	// Освобождение соединения на каждом пути выхода, включая отмену контекста
	defer func() {
		if closeErr := transport.Close(); closeErr != nil {
			logger.Debug("Закрытие транспорта", slog.String("error", closeErr.Error()))
		}
	}()

	if err := transport.Dial(ctx); err != nil {
		logger.Error("Верификация транспорта не пройдена",
			slog.String("host", d.cfg.SMTPHost),
			slog.Int("port", d.cfg.SMTPPort),
			slog.String("error", err.Error()),
		)
		return d.failure(errorID, http.StatusBadGateway, apierrors.CodeTransportFailed,
			"No fue posible conectar con el servidor de correo.")
	}

	msg := d.buildMessage(req, profile, to)
	if err := transport.Send(ctx, msg); err != nil {
		logger.Error("Отправка не удалась после верифицированного соединения",
			slog.String("error", err.Error()),
		)
		return d.failure(errorID, http.StatusInternalServerError, apierrors.CodeDeliveryFailed,
			"No fue posible enviar el correo.")
	}

	logger.Info("Документ доставлен",
		slog.String("filename", req.Filename),
		slog.Int("size_bytes", len(req.Document)),
		slog.String("sender_key", req.SenderKey),
	)
	return &model.DeliveryOutcome{
		OK:         true,
		Message:    "Correo enviado correctamente.",
		ErrorID:    errorID,
		StatusCode: http.StatusOK,
		Code:       apierrors.CodeOK,
		Timestamp:  d.now().UTC(),
	}
}

// buildMessage собирает письмо с темой и телом по умолчанию.
// Тема и тело переопределяются полями запроса.
func (d *Dispatcher) buildMessage(req *model.DeliveryRequest, profile model.SenderProfile, to string) *Message {
	clientName := strings.TrimSpace(req.ClientName)
	if clientName == "" {
		clientName = "Cliente"
	}
	stamp := d.now().Format("2006-01-02 15:04")

	subject := req.Subject
	if subject == "" {
		subject = fmt.Sprintf("Cedula - %s - %s", clientName, stamp)
	}
	text := req.Text
	if text == "" {
		text = fmt.Sprintf("Se adjunta el PDF con la cedula capturada de %s. Fecha: %s.", clientName, stamp)
	}

	return &Message{
		FromAddr:       profile.From,
		FromName:       profile.FromName,
		To:             to,
		Subject:        subject,
		Text:           text,
		HTML:           req.HTML,
		AttachmentName: req.Filename,
		Attachment:     req.Document,
		AttachmentType: attachmentMIME,
	}
}

// failure формирует неуспешный результат с меткой времени.
func (d *Dispatcher) failure(errorID string, status int, code, message string) *model.DeliveryOutcome {
	return &model.DeliveryOutcome{
		OK:         false,
		Message:    message,
		ErrorID:    errorID,
		StatusCode: status,
		Code:       code,
		Timestamp:  d.now().UTC(),
	}
}
