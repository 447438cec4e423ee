// Пакет gstcap — источник потоков захвата на GStreamer (V4L2-камеры).
//
// Конвейер: v4l2src → videoconvert → jpegenc → appsink.
// appsink держит только последний кадр (max-buffers=1, drop=true):
// Capture всегда отдаёт самый свежий снимок, без накопления очереди.
package gstcap

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // регистрация JPEG-декодера для чтения размеров кадра
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/Jhonny-Kenneth/lector-id/internal/acquire"
	"github.com/Jhonny-Kenneth/lector-id/internal/domain/model"
)

// devicePattern — шаблон устройств V4L2.
const devicePattern = "/dev/video*"

// jpegFrame — один закодированный кадр из appsink.
type jpegFrame struct {
	data []byte
}

// Capability — источник потоков на GStreamer.
type Capability struct {
	logger *slog.Logger
}

// New создаёт источник потоков GStreamer.
// Инициализация GStreamer безопасна при повторных вызовах.
func New(logger *slog.Logger) *Capability {
	gst.Init(nil)
	return &Capability{
		logger: logger.With(slog.String("component", "gstcap")),
	}
}

// Enumerate перечисляет устройства V4L2 по /dev/video*.
func (c *Capability) Enumerate(_ context.Context) ([]model.CaptureDevice, error) {
	matches, err := filepath.Glob(devicePattern)
	if err != nil {
		return nil, fmt.Errorf("перечисление V4L2: %w", err)
	}
	sort.Strings(matches)

	devices := make([]model.CaptureDevice, 0, len(matches))
	for _, path := range matches {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		devices = append(devices, model.CaptureDevice{
			ID:    path,
			Label: filepath.Base(path),
		})
	}
	return devices, nil
}

// Open строит и запускает конвейер захвата для устройства.
func (c *Capability) Open(_ context.Context, deviceID string) (acquire.Stream, error) {
	if _, err := os.Stat(deviceID); err != nil {
		return nil, fmt.Errorf("%w: %s", acquire.ErrDeviceUnavailable, deviceID)
	}

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("создание конвейера: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("создание v4l2src: %w", err)
	}
	src.SetProperty("device", deviceID)

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("создание videoconvert: %w", err)
	}

	encoder, err := gst.NewElement("jpegenc")
	if err != nil {
		return nil, fmt.Errorf("создание jpegenc: %w", err)
	}

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("создание appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // Без синхронизации с часами
	appsink.SetProperty("max-buffers", 1) // Только последний кадр
	appsink.SetProperty("drop", true)     // Старые кадры отбрасываются

	pipeline.AddMany(src, convert, encoder, appsink.Element)
	if err := gst.ElementLinkMany(src, convert, encoder, appsink.Element); err != nil {
		return nil, fmt.Errorf("связывание элементов конвейера: %w", err)
	}

	stream := &gstStream{
		pipeline: pipeline,
		deviceID: deviceID,
		logger:   c.logger,
		frames:   make(chan jpegFrame, 1),
	}

	appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: stream.onNewSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		_ = pipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("%w: запуск конвейера: %v", acquire.ErrDeviceUnavailable, err)
	}

	c.logger.Info("Конвейер захвата запущен", slog.String("device", deviceID))
	return stream, nil
}

// gstStream — поток одного устройства поверх работающего конвейера.
type gstStream struct {
	pipeline *gst.Pipeline
	deviceID string
	logger   *slog.Logger
	frames   chan jpegFrame

	mu     sync.Mutex
	closed bool
}

// onNewSample вызывается GStreamer при готовности нового кадра.
// Кадр копируется из буфера конвейера; при заполненном канале
// вытесняется предыдущий — Capture видит только самый свежий.
func (s *gstStream) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}

	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	// Вытеснение устаревшего кадра без блокировки конвейера
	select {
	case s.frames <- jpegFrame{data: frameData}:
	default:
		select {
		case <-s.frames:
		default:
		}
		select {
		case s.frames <- jpegFrame{data: frameData}:
		default:
		}
	}

	return gst.FlowOK
}

// Capture ждёт свежий кадр конвейера и возвращает его как JPEG-снимок.
func (s *gstStream) Capture(ctx context.Context) (*model.CapturedImage, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, acquire.ErrNotReady
	}
	s.mu.Unlock()

	select {
	case frame := <-s.frames:
		cfg, err := jpegConfig(frame.data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", acquire.ErrDecode, err)
		}
		return &model.CapturedImage{
			Data:   frame.data,
			Format: model.FormatJPEG,
			Width:  cfg.Width,
			Height: cfg.Height,
		}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("ожидание кадра: %w", ctx.Err())
	}
}

// Close останавливает конвейер. Идемпотентен.
func (s *gstStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("остановка конвейера: %w", err)
	}
	s.logger.Info("Конвейер захвата остановлен", slog.String("device", s.deviceID))
	return nil
}

// jpegConfig читает размеры кадра из заголовка JPEG.
func jpegConfig(data []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	return cfg, err
}
