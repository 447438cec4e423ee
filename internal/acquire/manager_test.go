package acquire

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/Jhonny-Kenneth/lector-id/internal/domain/capstate"
	"github.com/Jhonny-Kenneth/lector-id/internal/domain/model"
)

// fakeStream — управляемый поток для тестов.
type fakeStream struct {
	mu         sync.Mutex
	frame      *model.CapturedImage
	captureErr error
	closed     int
}

func (s *fakeStream) Capture(_ context.Context) (*model.CapturedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.captureErr != nil {
		return nil, s.captureErr
	}
	return s.frame, nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// fakeCapability — управляемый источник потоков для тестов.
type fakeCapability struct {
	mu      sync.Mutex
	devices []model.CaptureDevice
	streams map[string]*fakeStream
	openErr error
	enumErr error
	enums   int
}

func (c *fakeCapability) Enumerate(_ context.Context) ([]model.CaptureDevice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enums++
	if c.enumErr != nil {
		return nil, c.enumErr
	}
	return c.devices, nil
}

func (c *fakeCapability) Open(_ context.Context, deviceID string) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return nil, c.openErr
	}
	stream, ok := c.streams[deviceID]
	if !ok {
		return nil, ErrDeviceUnavailable
	}
	return stream, nil
}

func encodeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height)), nil); err != nil {
		t.Fatalf("кодирование JPEG: %v", err)
	}
	return buf.Bytes()
}

func testFrame(t *testing.T, width, height int) *model.CapturedImage {
	t.Helper()
	return &model.CapturedImage{
		Data:   encodeJPEG(t, width, height),
		Format: model.FormatJPEG,
		Width:  width,
		Height: height,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestManager_Lifecycle проверяет запуск, снимок и остановку потока.
func TestManager_Lifecycle(t *testing.T) {
	stream := &fakeStream{frame: testFrame(t, 640, 480)}
	cap := &fakeCapability{streams: map[string]*fakeStream{"cam0": stream}}
	m := NewManager(cap, discardLogger())

	if got := m.State(); got != capstate.StateIdle {
		t.Fatalf("начальное состояние: %s", got)
	}
	if _, err := m.Capture(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("снимок вне потока: ожидалась ErrNotReady, получено %v", err)
	}

	if err := m.Start(context.Background(), "cam0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := m.State(); got != capstate.StateActive {
		t.Errorf("состояние после запуска: %s", got)
	}
	session := m.Session()
	if session.DeviceID != "cam0" || session.StartedAt.IsZero() {
		t.Errorf("сессия после запуска: %+v", session)
	}

	img, err := m.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if img.Width != 640 || img.Height != 480 {
		t.Errorf("размеры снимка: %dx%d", img.Width, img.Height)
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := m.State(); got != capstate.StateIdle {
		t.Errorf("состояние после остановки: %s", got)
	}
	if stream.closed != 1 {
		t.Errorf("поток должен быть закрыт ровно один раз, закрыт %d", stream.closed)
	}

	// Повторный Stop — no-op
	if err := m.Stop(); err != nil {
		t.Errorf("повторный Stop: %v", err)
	}
	if stream.closed != 1 {
		t.Errorf("повторный Stop не должен закрывать поток снова")
	}
}

// TestManager_StartAnyDevice проверяет запуск без указания устройства:
// открывается первое доступное из перечисления.
func TestManager_StartAnyDevice(t *testing.T) {
	t.Run("первое доступное устройство", func(t *testing.T) {
		stream := &fakeStream{frame: testFrame(t, 320, 240)}
		cap := &fakeCapability{
			devices: []model.CaptureDevice{{ID: "cam0", Label: "USB Camera"}},
			streams: map[string]*fakeStream{"cam0": stream},
		}
		m := NewManager(cap, discardLogger())

		if err := m.Start(context.Background(), ""); err != nil {
			t.Fatalf("Start без устройства: %v", err)
		}
		if got := m.State(); got != capstate.StateActive {
			t.Errorf("состояние: %s", got)
		}
		if got := m.Session().DeviceID; got != "cam0" {
			t.Errorf("активное устройство: %q", got)
		}
	})

	t.Run("сбойное устройство пропускается", func(t *testing.T) {
		stream := &fakeStream{frame: testFrame(t, 320, 240)}
		cap := &fakeCapability{
			devices: []model.CaptureDevice{
				{ID: "cam0", Label: "Broken Camera"},
				{ID: "cam1", Label: "USB Camera"},
			},
			// cam0 отсутствует в streams: Open вернёт ErrDeviceUnavailable
			streams: map[string]*fakeStream{"cam1": stream},
		}
		m := NewManager(cap, discardLogger())

		if err := m.Start(context.Background(), ""); err != nil {
			t.Fatalf("Start без устройства: %v", err)
		}
		if got := m.Session().DeviceID; got != "cam1" {
			t.Errorf("активное устройство: %q", got)
		}
	})

	t.Run("нет устройств — fallback", func(t *testing.T) {
		m := NewManager(&fakeCapability{}, discardLogger())

		err := m.Start(context.Background(), "")
		if !errors.Is(err, ErrDeviceUnavailable) {
			t.Fatalf("ожидалась ErrDeviceUnavailable, получено: %v", err)
		}
		if got := m.State(); got != capstate.StateFallback {
			t.Errorf("состояние: %s", got)
		}
	})
}

// TestManager_SwitchDevice проверяет, что запуск с другим устройством
// закрывает прежний поток.
func TestManager_SwitchDevice(t *testing.T) {
	first := &fakeStream{frame: testFrame(t, 320, 240)}
	second := &fakeStream{frame: testFrame(t, 320, 240)}
	cap := &fakeCapability{streams: map[string]*fakeStream{"cam0": first, "cam1": second}}
	m := NewManager(cap, discardLogger())

	if err := m.Start(context.Background(), "cam0"); err != nil {
		t.Fatalf("Start cam0: %v", err)
	}
	if err := m.Start(context.Background(), "cam1"); err != nil {
		t.Fatalf("Start cam1: %v", err)
	}

	if first.closed != 1 {
		t.Error("прежний поток должен закрываться при смене устройства")
	}
	if got := m.Session().DeviceID; got != "cam1" {
		t.Errorf("активное устройство: %q", got)
	}
}

// TestManager_StartFailure проверяет деградацию в fallback и повторный
// запуск из него.
func TestManager_StartFailure(t *testing.T) {
	stream := &fakeStream{frame: testFrame(t, 320, 240)}
	cap := &fakeCapability{streams: map[string]*fakeStream{"cam0": stream}}
	m := NewManager(cap, discardLogger())

	err := m.Start(context.Background(), "no-such-device")
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("ожидалась ErrDeviceUnavailable, получено: %v", err)
	}
	if got := m.State(); got != capstate.StateFallback {
		t.Errorf("состояние после сбоя запуска: %s", got)
	}

	// Из fallback запуск можно повторить
	if err := m.Start(context.Background(), "cam0"); err != nil {
		t.Fatalf("повторный Start из fallback: %v", err)
	}
	if got := m.State(); got != capstate.StateActive {
		t.Errorf("состояние после повторного запуска: %s", got)
	}
}

// TestManager_DeviceLost проверяет освобождение потока при пропаже
// устройства во время снимка.
func TestManager_DeviceLost(t *testing.T) {
	stream := &fakeStream{captureErr: ErrDeviceUnavailable}
	cap := &fakeCapability{streams: map[string]*fakeStream{"cam0": stream}}
	m := NewManager(cap, discardLogger())

	if err := m.Start(context.Background(), "cam0"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err := m.Capture(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("ожидалась ErrDeviceUnavailable, получено: %v", err)
	}
	if got := m.State(); got != capstate.StateIdle {
		t.Errorf("состояние после пропажи устройства: %s", got)
	}
	if stream.closed != 1 {
		t.Error("поток должен освобождаться при пропаже устройства")
	}
	if _, err := m.Capture(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("после пропажи устройства ожидалась ErrNotReady, получено: %v", err)
	}
}

// TestManager_CaptureEmptyFrame проверяет, что кадр без размеров
// (поток ещё не выдал полноценное изображение) даёт ErrNotReady,
// не завершая поток.
func TestManager_CaptureEmptyFrame(t *testing.T) {
	stream := &fakeStream{frame: &model.CapturedImage{Format: model.FormatJPEG}}
	cap := &fakeCapability{streams: map[string]*fakeStream{"cam0": stream}}
	m := NewManager(cap, discardLogger())

	if err := m.Start(context.Background(), "cam0"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err := m.Capture(context.Background())
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("ожидалась ErrNotReady, получено: %v", err)
	}
	if got := m.State(); got != capstate.StateActive {
		t.Errorf("поток должен оставаться активным, состояние: %s", got)
	}

	// Как только поток выдал полноценный кадр, снимок проходит
	stream.mu.Lock()
	stream.frame = testFrame(t, 320, 240)
	stream.mu.Unlock()
	if _, err := m.Capture(context.Background()); err != nil {
		t.Errorf("снимок после первого полноценного кадра: %v", err)
	}
}

// TestManager_CaptureDownscale проверяет уменьшение широких кадров
// до 1600 пикселей с сохранением пропорций.
func TestManager_CaptureDownscale(t *testing.T) {
	stream := &fakeStream{frame: testFrame(t, 3200, 1800)}
	cap := &fakeCapability{streams: map[string]*fakeStream{"cam0": stream}}
	m := NewManager(cap, discardLogger())

	if err := m.Start(context.Background(), "cam0"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	img, err := m.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if img.Width != 1600 || img.Height != 900 {
		t.Errorf("размеры после уменьшения: %dx%d, ожидалось 1600x900", img.Width, img.Height)
	}
	if img.Format != model.FormatJPEG {
		t.Errorf("формат после перекодирования: %s", img.Format)
	}
}

// TestManager_CaptureFromFile проверяет ручную загрузку файлов.
func TestManager_CaptureFromFile(t *testing.T) {
	m := NewManager(&fakeCapability{}, discardLogger())

	t.Run("JPEG", func(t *testing.T) {
		img, err := m.CaptureFromFile(bytes.NewReader(encodeJPEG(t, 200, 100)))
		if err != nil {
			t.Fatalf("CaptureFromFile: %v", err)
		}
		if img.Format != model.FormatJPEG || img.Width != 200 || img.Height != 100 {
			t.Errorf("результат: %s %dx%d", img.Format, img.Width, img.Height)
		}
	})

	t.Run("PNG", func(t *testing.T) {
		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 50, 50))); err != nil {
			t.Fatalf("кодирование PNG: %v", err)
		}
		img, err := m.CaptureFromFile(&buf)
		if err != nil {
			t.Fatalf("CaptureFromFile: %v", err)
		}
		if img.Format != model.FormatPNG {
			t.Errorf("формат: %s", img.Format)
		}
	})

	t.Run("повреждённые данные", func(t *testing.T) {
		_, err := m.CaptureFromFile(bytes.NewReader([]byte("not an image")))
		if !errors.Is(err, ErrDecode) {
			t.Errorf("ожидалась ErrDecode, получено: %v", err)
		}
	})

	t.Run("широкий файл уменьшается", func(t *testing.T) {
		img, err := m.CaptureFromFile(bytes.NewReader(encodeJPEG(t, 2000, 1000)))
		if err != nil {
			t.Fatalf("CaptureFromFile: %v", err)
		}
		if img.Width != 1600 || img.Height != 800 {
			t.Errorf("размеры: %dx%d", img.Width, img.Height)
		}
	})
}

// TestManager_RefreshDevices проверяет кеширование списка устройств.
func TestManager_RefreshDevices(t *testing.T) {
	cap := &fakeCapability{devices: []model.CaptureDevice{{ID: "cam0", Label: "USB Camera"}}}
	m := NewManager(cap, discardLogger())

	devices, err := m.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "cam0" {
		t.Fatalf("устройства: %+v", devices)
	}

	// Повторный ListDevices отдаёт кеш без нового перечисления
	if _, err := m.ListDevices(context.Background()); err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if cap.enums != 1 {
		t.Errorf("ожидалось одно перечисление, выполнено %d", cap.enums)
	}

	// RefreshDevices перечисляет заново
	cap.mu.Lock()
	cap.devices = append(cap.devices, model.CaptureDevice{ID: "cam1", Label: "HDMI Grabber"})
	cap.mu.Unlock()

	devices, err = m.RefreshDevices(context.Background())
	if err != nil {
		t.Fatalf("RefreshDevices: %v", err)
	}
	if len(devices) != 2 {
		t.Errorf("после обновления: %+v", devices)
	}
}

// TestManager_Fallback проверяет явный перевод в режим ручной загрузки.
func TestManager_Fallback(t *testing.T) {
	stream := &fakeStream{frame: testFrame(t, 320, 240)}
	cap := &fakeCapability{streams: map[string]*fakeStream{"cam0": stream}}
	m := NewManager(cap, discardLogger())

	if err := m.Start(context.Background(), "cam0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Fallback(); err != nil {
		t.Fatalf("Fallback: %v", err)
	}
	if got := m.State(); got != capstate.StateFallback {
		t.Errorf("состояние: %s", got)
	}
	if stream.closed != 1 {
		t.Error("активный поток должен закрываться при переходе в fallback")
	}
	// Ручная загрузка доступна в fallback
	if _, err := m.CaptureFromFile(bytes.NewReader(encodeJPEG(t, 100, 100))); err != nil {
		t.Errorf("CaptureFromFile в fallback: %v", err)
	}
}
