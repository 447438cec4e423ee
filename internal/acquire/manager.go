package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // регистрация PNG-декодера для ручной загрузки
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/Jhonny-Kenneth/lector-id/internal/domain/capstate"
	"github.com/Jhonny-Kenneth/lector-id/internal/domain/model"
)

// maxCaptureWidth — максимальная ширина снимка; более широкие кадры
// уменьшаются с сохранением пропорций.
const maxCaptureWidth = 1600

// jpegQuality — качество перекодирования уменьшенных снимков.
const jpegQuality = 92

// Session — снимок текущей сессии захвата.
type Session struct {
	// DeviceID — идентификатор активного устройства ("" вне потока)
	DeviceID string `json:"deviceId"`
	// State — текущее состояние жизненного цикла
	State capstate.State `json:"state"`
	// StartedAt — момент открытия активного потока
	StartedAt time.Time `json:"startedAt,omitzero"`
}

// Manager — менеджер захвата. Владеет единственным активным потоком
// и машиной состояний; все операции безопасны для конкурентного вызова.
type Manager struct {
	capability Capability
	logger     *slog.Logger
	sm         *capstate.StateMachine

	mu        sync.Mutex
	stream    Stream
	deviceID  string
	startedAt time.Time
	devices   []model.CaptureDevice
}

// NewManager создаёт менеджер захвата поверх источника потоков.
func NewManager(capability Capability, logger *slog.Logger) *Manager {
	return &Manager{
		capability: capability,
		logger:     logger.With(slog.String("component", "acquire")),
		sm:         capstate.NewStateMachine(),
	}
}

// State возвращает текущее состояние жизненного цикла захвата.
func (m *Manager) State() capstate.State {
	return m.sm.Current()
}

// Session возвращает снимок текущей сессии захвата.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Session{
		DeviceID:  m.deviceID,
		State:     m.sm.Current(),
		StartedAt: m.startedAt,
	}
}

// ListDevices возвращает кешированный список устройств; при пустом кеше
// выполняет перечисление.
func (m *Manager) ListDevices(ctx context.Context) ([]model.CaptureDevice, error) {
	m.mu.Lock()
	cached := m.devices
	m.mu.Unlock()
	if cached != nil {
		out := make([]model.CaptureDevice, len(cached))
		copy(out, cached)
		return out, nil
	}
	return m.RefreshDevices(ctx)
}

// RefreshDevices заново перечисляет устройства и обновляет кеш.
// Перечисление выполняется без удержания блокировки: активный поток
// продолжает работать во время обновления.
func (m *Manager) RefreshDevices(ctx context.Context) ([]model.CaptureDevice, error) {
	devices, err := m.capability.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("перечисление устройств: %w", err)
	}

	m.mu.Lock()
	m.devices = devices
	m.mu.Unlock()

	m.logger.Debug("Список устройств обновлён", slog.Int("count", len(devices)))
	out := make([]model.CaptureDevice, len(devices))
	copy(out, devices)
	return out, nil
}

// Start открывает поток захвата с устройства. Пустой deviceID означает
// "любое доступное": устройства перечисляются и открывается первое,
// которое удалось открыть. Повторный Start с другим устройством сначала
// закрывает прежний поток: активен всегда не более одного потока.
// Недоступность устройств переводит менеджер в fallback.
func (m *Manager) Start(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sm.Fire(capstate.EventStart); err != nil {
		return fmt.Errorf("запуск захвата: %w", err)
	}

	// Смена устройства: старый поток закрывается до открытия нового
	if m.stream != nil {
		if err := m.stream.Close(); err != nil {
			m.logger.Warn("Закрытие прежнего потока", slog.String("error", err.Error()))
		}
		m.stream = nil
		m.deviceID = ""
	}

	stream, openedID, err := m.openStream(ctx, deviceID)
	if err != nil {
		m.logger.Error("Не удалось открыть поток",
			slog.String("device_id", deviceID),
			slog.String("error", err.Error()),
		)
		if fireErr := m.sm.Fire(capstate.EventStartFailed); fireErr != nil {
			m.logger.Error("Переход после сбоя запуска", slog.String("error", fireErr.Error()))
		}
		if errors.Is(err, ErrDeviceUnavailable) {
			return fmt.Errorf("устройство %q: %w", deviceID, err)
		}
		return fmt.Errorf("открытие потока %q: %w", deviceID, err)
	}

	if err := m.sm.Fire(capstate.EventStarted); err != nil {
		_ = stream.Close()
		return fmt.Errorf("запуск захвата: %w", err)
	}

	m.stream = stream
	m.deviceID = openedID
	m.startedAt = time.Now().UTC()
	m.logger.Info("Поток захвата открыт", slog.String("device_id", openedID))
	return nil
}

// openStream открывает поток указанного устройства, а при пустом
// идентификаторе — первого доступного из перечисления.
// Вызывается под m.mu.
func (m *Manager) openStream(ctx context.Context, deviceID string) (Stream, string, error) {
	if deviceID != "" {
		stream, err := m.capability.Open(ctx, deviceID)
		return stream, deviceID, err
	}

	devices, err := m.capability.Enumerate(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("перечисление устройств: %w", err)
	}
	m.devices = devices
	if len(devices) == 0 {
		return nil, "", fmt.Errorf("нет устройств захвата: %w", ErrDeviceUnavailable)
	}

	var lastErr error
	for _, d := range devices {
		stream, openErr := m.capability.Open(ctx, d.ID)
		if openErr == nil {
			return stream, d.ID, nil
		}
		m.logger.Warn("Устройство не открылось, пробуем следующее",
			slog.String("device_id", d.ID),
			slog.String("error", openErr.Error()),
		)
		lastErr = openErr
	}
	return nil, "", lastErr
}

// Stop закрывает активный поток. Идемпотентен: повторный Stop
// вне активного потока — no-op.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}

	err := m.stream.Close()
	m.stream = nil
	m.deviceID = ""
	m.startedAt = time.Time{}

	if fireErr := m.sm.Fire(capstate.EventStop); fireErr != nil {
		m.logger.Error("Переход при остановке", slog.String("error", fireErr.Error()))
	}
	if err != nil {
		return fmt.Errorf("остановка потока: %w", err)
	}
	m.logger.Info("Поток захвата остановлен")
	return nil
}

// Capture снимает кадр с активного потока. Кадр без размеров означает,
// что поток ещё не выдал полноценное изображение — ErrNotReady.
// Кадры шире 1600 пикселей уменьшаются с сохранением пропорций
// и перекодируются в JPEG. Пропажа устройства во время снимка
// освобождает поток.
func (m *Manager) Capture(ctx context.Context) (*model.CapturedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil || m.sm.Current() != capstate.StateActive {
		return nil, ErrNotReady
	}

	img, err := m.stream.Capture(ctx)
	if err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			m.logger.Error("Устройство пропало во время снимка",
				slog.String("device_id", m.deviceID))
			_ = m.stream.Close()
			m.stream = nil
			m.deviceID = ""
			m.startedAt = time.Time{}
			if fireErr := m.sm.Fire(capstate.EventDeviceLost); fireErr != nil {
				m.logger.Error("Переход при пропаже устройства", slog.String("error", fireErr.Error()))
			}
		}
		return nil, fmt.Errorf("снимок кадра: %w", err)
	}

	// Поток ещё не выдал полноценный кадр
	if img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("кадр %dx%d: %w", img.Width, img.Height, ErrNotReady)
	}

	return downscale(img)
}

// CaptureFromFile загружает изображение из файла вручную: путь
// деградации, доступный в любом состоянии. Принимаются только JPEG и PNG.
func (m *Manager) CaptureFromFile(r io.Reader) (*model.CapturedImage, error) {
	img, err := decodeImage(r)
	if err != nil {
		return nil, err
	}
	return downscale(img)
}

// decodeImage читает и валидирует закодированное изображение.
// Принимаются только JPEG и PNG.
func decodeImage(r io.Reader) (*model.CapturedImage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("чтение изображения: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var imgFormat model.ImageFormat
	switch format {
	case "jpeg":
		imgFormat = model.FormatJPEG
	case "png":
		imgFormat = model.FormatPNG
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedImageFormat, format)
	}

	return &model.CapturedImage{
		Data:   data,
		Format: imgFormat,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// Fallback явно переводит менеджер в режим ручной загрузки,
// закрывая активный поток, если он был.
func (m *Manager) Fallback() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		_ = m.stream.Close()
		m.stream = nil
		m.deviceID = ""
		m.startedAt = time.Time{}
	}
	if err := m.sm.Fire(capstate.EventAcquireFailed); err != nil {
		return fmt.Errorf("переход в fallback: %w", err)
	}
	m.logger.Warn("Менеджер переведён в режим ручной загрузки")
	return nil
}

// History возвращает историю переходов жизненного цикла.
func (m *Manager) History() []capstate.TransitionRecord {
	return m.sm.History()
}

// downscale уменьшает изображение до maxCaptureWidth по ширине.
// Изображения в пределах лимита возвращаются без перекодирования.
func downscale(img *model.CapturedImage) (*model.CapturedImage, error) {
	if img.Width <= maxCaptureWidth {
		return img, nil
	}

	decoded, err := imaging.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	resized := imaging.Resize(decoded, maxCaptureWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("перекодирование JPEG: %w", err)
	}

	bounds := resized.Bounds()
	return &model.CapturedImage{
		Data:   buf.Bytes(),
		Format: model.FormatJPEG,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
