// Пакет model — доменные типы конвейера захвата и доставки документов.
package model

import "time"

// ImageFormat — формат пиксельных данных захваченного изображения.
type ImageFormat string

const (
	// FormatJPEG — изображение в кодировке JPEG
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG — изображение в кодировке PNG
	FormatPNG ImageFormat = "png"
)

// CaptureDevice — устройство захвата (камера).
// Идентификатор стабилен для физического устройства, устройство
// никогда не принадлежит менеджеру эксклюзивно.
type CaptureDevice struct {
	// ID — непрозрачный стабильный идентификатор устройства
	ID string `json:"id"`
	// Label — человекочитаемое имя устройства
	Label string `json:"label"`
}

// CapturedImage — неизменяемый результат одного снимка.
// Создаётся захватом кадра или ручной загрузкой файла,
// потребляется композером документа ровно один раз.
type CapturedImage struct {
	// Data — закодированные байты изображения (JPEG или PNG)
	Data []byte
	// Format — формат кодировки
	Format ImageFormat
	// Width — ширина в пикселях
	Width int
	// Height — высота в пикселях
	Height int
}

// ComposedDocument — итоговый двухстраничный бинарный документ.
type ComposedDocument struct {
	// Bytes — содержимое PDF
	Bytes []byte
	// Filename — рекомендуемое имя файла (cedula_<имя>_<дата>_<время>.pdf)
	Filename string
}

// SenderProfile — связка учётных данных исходящей почты и отображаемого
// отправителя. Выбирается по ключу запроса, не персистится: собирается
// заново на каждый запрос из конфигурации процесса.
type SenderProfile struct {
	// User — пользователь транспорта
	User string `json:"user"`
	// Pass — секрет транспорта
	Pass string `json:"pass"`
	// From — адрес отправителя
	From string `json:"from"`
	// FromName — отображаемое имя отправителя
	FromName string `json:"from_name"`
}

// DeliveryRequest — транзиентный запрос на доставку документа.
// Живёт ровно один вызов диспетчера.
type DeliveryRequest struct {
	// Document — байты PDF
	Document []byte
	// Filename — имя вложения
	Filename string
	// ClientName — отображаемое имя клиента
	ClientName string
	// SenderKey — ключ профиля отправителя (опционально)
	SenderKey string
	// To — адрес получателя (опционально, fallback на конфигурацию)
	To string
	// Subject — переопределение темы (опционально)
	Subject string
	// Text — переопределение текстового тела (опционально)
	Text string
	// HTML — переопределение HTML-тела (опционально)
	HTML string
}

// DeliveryOutcome — результат одного вызова диспетчера.
// Формируется всегда, при успехе и при ошибке.
type DeliveryOutcome struct {
	// OK — признак успешной доставки
	OK bool `json:"ok"`
	// Message — человекочитаемое сообщение для оператора
	Message string `json:"message"`
	// ErrorID — корреляционный идентификатор запроса
	ErrorID string `json:"errorId"`
	// StatusCode — HTTP-эквивалентный статус-код (не сериализуется)
	StatusCode int `json:"-"`
	// Code — машиночитаемый код результата (не сериализуется)
	Code string `json:"-"`
	// Timestamp — момент формирования результата
	Timestamp time.Time `json:"-"`
}
