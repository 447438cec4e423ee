// Пакет acquire — менеджер захвата изображений с устройств.
//
// Менеджер владеет жизненным циклом потока захвата и машиной состояний
// idle → starting → active с деградацией в fallback. Источники кадров
// скрыты за интерфейсом Capability: реальная реализация — конвейер
// GStreamer (gstcap), в деградированном режиме и в тестах — файловый
// источник.
package acquire

import (
	"context"
	"errors"

	"github.com/Jhonny-Kenneth/lector-id/internal/domain/model"
)

// ErrNotReady — захват запрошен вне активного потока.
var ErrNotReady = errors.New("поток захвата не активен")

// ErrDeviceUnavailable — устройство пропало или не может быть открыто.
var ErrDeviceUnavailable = errors.New("устройство захвата недоступно")

// ErrUnsupportedImageFormat — файл не является JPEG или PNG.
var ErrUnsupportedImageFormat = errors.New("неподдерживаемый формат изображения")

// ErrDecode — данные изображения повреждены.
var ErrDecode = errors.New("ошибка декодирования изображения")

// Capability — источник устройств и потоков захвата.
//
// Реализации обязаны быть безопасными для конкурентного Enumerate;
// Open выдаёт новый независимый поток на каждый вызов.
type Capability interface {
	// Enumerate возвращает доступные устройства захвата.
	Enumerate(ctx context.Context) ([]model.CaptureDevice, error)
	// Open открывает поток захвата с устройства.
	// Ошибка открытия несуществующего устройства — ErrDeviceUnavailable.
	Open(ctx context.Context, deviceID string) (Stream, error)
}

// Stream — открытый поток захвата одного устройства.
type Stream interface {
	// Capture снимает текущий кадр потока.
	Capture(ctx context.Context) (*model.CapturedImage, error)
	// Close останавливает поток. Идемпотентен.
	Close() error
}
