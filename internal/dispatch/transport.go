// transport.go — абстракция почтового транспорта и реализация на go-mail.
//
// Диспетчер работает только с интерфейсом Transport; реальный SMTP-клиент
// подставляется фабрикой в main, фальшивый — в тестах.
package dispatch

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"

	"github.com/wneessen/go-mail"
)

// implicitTLSPort — общеизвестный порт SMTP с implicit TLS.
const implicitTLSPort = 465

// TransportSettings — параметры подключения к почтовому транспорту,
// разрешённые для одного запроса.
type TransportSettings struct {
	// Host — хост SMTP-сервера
	Host string
	// Port — порт SMTP-сервера
	Port int
	// User — пользователь транспорта
	User string
	// Pass — нормализованный секрет транспорта
	Pass string
	// SkipTLSVerify — отключить проверку сертификата (только явно через конфиг)
	SkipTLSVerify bool
}

// Message — письмо с вложением для передачи транспорту.
type Message struct {
	// FromAddr — адрес отправителя
	FromAddr string
	// FromName — отображаемое имя отправителя (опционально)
	FromName string
	// To — адрес получателя
	To string
	// Subject — тема письма
	Subject string
	// Text — текстовое тело
	Text string
	// HTML — HTML-тело (опционально)
	HTML string
	// AttachmentName — имя вложения
	AttachmentName string
	// Attachment — байты вложения
	Attachment []byte
	// AttachmentType — MIME-тип вложения
	AttachmentType string
}

// Transport — соединение с почтовым транспортом в рамках одного запроса.
//
// Контракт:
//   - Dial открывает соединение и выполняет handshake с аутентификацией
//     (шаг верификации); ошибка Dial означает "почтовый сервис отверг нас".
//   - Send выполняется только после успешного Dial.
//   - Close обязан вызываться на каждом пути выхода, идемпотентен.
type Transport interface {
	Dial(ctx context.Context) error
	Send(ctx context.Context, msg *Message) error
	Close() error
}

// TransportFactory создаёт транспорт для разрешённых параметров профиля.
type TransportFactory func(settings TransportSettings) (Transport, error)

// mailTransport — реализация Transport поверх wneessen/go-mail.
type mailTransport struct {
	client *mail.Client
}

// NewMailTransport создаёт SMTP-транспорт.
// Порт 465 — implicit TLS, остальные порты — обязательный STARTTLS.
func NewMailTransport(settings TransportSettings) (Transport, error) {
	opts := []mail.Option{
		mail.WithPort(settings.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(settings.User),
		mail.WithPassword(settings.Pass),
	}

	if settings.Port == implicitTLSPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	if settings.SkipTLSVerify {
		opts = append(opts, mail.WithTLSConfig(&tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // включается только явным флагом конфигурации
			MinVersion:         tls.VersionTLS12,
		}))
	}

	client, err := mail.NewClient(settings.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("создание SMTP-клиента: %w", err)
	}

	return &mailTransport{client: client}, nil
}

// Dial открывает соединение и проходит handshake/аутентификацию.
func (t *mailTransport) Dial(ctx context.Context) error {
	if err := t.client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("SMTP handshake: %w", err)
	}
	return nil
}

// Send собирает письмо go-mail и отправляет его через открытое соединение.
func (t *mailTransport) Send(_ context.Context, msg *Message) error {
	m := mail.NewMsg()

	if msg.FromName != "" {
		if err := m.FromFormat(msg.FromName, msg.FromAddr); err != nil {
			return fmt.Errorf("адрес отправителя: %w", err)
		}
	} else {
		if err := m.From(msg.FromAddr); err != nil {
			return fmt.Errorf("адрес отправителя: %w", err)
		}
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("адрес получателя: %w", err)
	}

	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	if err := m.AttachReader(msg.AttachmentName, bytes.NewReader(msg.Attachment),
		mail.WithFileContentType(mail.ContentType(msg.AttachmentType))); err != nil {
		return fmt.Errorf("вложение: %w", err)
	}

	if err := t.client.Send(m); err != nil {
		return fmt.Errorf("отправка письма: %w", err)
	}
	return nil
}

// Close закрывает соединение. Безопасен при неоткрытом соединении.
func (t *mailTransport) Close() error {
	return t.client.Close()
}
