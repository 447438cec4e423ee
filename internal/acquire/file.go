// file.go — файловый источник потоков: деградированный режим и тесты.
package acquire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Jhonny-Kenneth/lector-id/internal/domain/model"
)

// FileCapability — источник, отдающий изображения из файлов.
// Каждый файл виден как отдельное псевдоустройство; используется
// в режиме ручной загрузки и как тестовый двойник реальной камеры.
type FileCapability struct {
	paths []string
}

// NewFileCapability создаёт файловый источник для набора путей.
func NewFileCapability(paths ...string) *FileCapability {
	return &FileCapability{paths: paths}
}

// Enumerate возвращает существующие файлы как псевдоустройства.
func (c *FileCapability) Enumerate(_ context.Context) ([]model.CaptureDevice, error) {
	devices := make([]model.CaptureDevice, 0, len(c.paths))
	for _, p := range c.paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		devices = append(devices, model.CaptureDevice{
			ID:    p,
			Label: filepath.Base(p),
		})
	}
	return devices, nil
}

// Open открывает поток, читающий кадры из файла.
func (c *FileCapability) Open(_ context.Context, deviceID string) (Stream, error) {
	if _, err := os.Stat(deviceID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceUnavailable, deviceID)
	}
	return &fileStream{path: deviceID}, nil
}

// fileStream — поток, каждый Capture которого перечитывает файл.
type fileStream struct {
	mu     sync.Mutex
	path   string
	closed bool
}

func (s *fileStream) Capture(_ context.Context) (*model.CapturedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrNotReady
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	defer f.Close()

	return decodeImage(f)
}

// Close помечает поток закрытым. Идемпотентен.
func (s *fileStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
