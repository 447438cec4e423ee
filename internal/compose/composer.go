// Пакет compose — сборка двухстраничного PDF из пары захваченных изображений.
//
// Алгоритм детерминирован: каждое изображение встраивается на собственную
// страницу фиксированного размера, масштабируется равномерно до вписывания
// в печатную область и центрируется. Лицевая сторона — всегда страница 1,
// оборотная — всегда страница 2; порядок — жёсткий контракт. Никакого
// ресемплинга сверх одного масштабирования: без обрезки, поворота
// и цветокоррекции.
package compose

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/Jhonny-Kenneth/lector-id/internal/domain/model"
)

// Геометрия страницы A4 в пунктах, поля печатной области.
const (
	pageWidth  = 595.28
	pageHeight = 841.89
	pageMargin = 36.0
)

// ErrUnsupportedImageFormat — кодировка изображения не поддерживается.
var ErrUnsupportedImageFormat = errors.New("неподдерживаемый формат изображения")

// ErrDecode — закодированные данные изображения повреждены.
var ErrDecode = errors.New("ошибка декодирования изображения")

// Compose собирает документ из лицевой и оборотной сторон.
// Чистая функция своих входов; часы процесса используются только
// для имени файла.
func Compose(front, back model.CapturedImage, clientName string) (*model.ComposedDocument, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	// Фиксированная дата создания: байты документа зависят только от входов
	pdf.SetCreationDate(time.Unix(0, 0).UTC())
	pdf.SetModificationDate(time.Unix(0, 0).UTC())

	if err := embedPage(pdf, front, "front"); err != nil {
		return nil, fmt.Errorf("лицевая сторона: %w", err)
	}
	if err := embedPage(pdf, back, "back"); err != nil {
		return nil, fmt.Errorf("оборотная сторона: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("сериализация PDF: %w", err)
	}

	return &model.ComposedDocument{
		Bytes:    buf.Bytes(),
		Filename: BuildFilename(clientName),
	}, nil
}

// embedPage добавляет страницу и встраивает на неё изображение:
// равномерный масштаб min(maxW/w, maxH/h), центрирование.
func embedPage(pdf *fpdf.Fpdf, img model.CapturedImage, name string) error {
	imageType, err := fpdfImageType(img.Format)
	if err != nil {
		return err
	}
	if img.Width <= 0 || img.Height <= 0 || len(img.Data) == 0 {
		return fmt.Errorf("%w: пустое изображение %dx%d", ErrDecode, img.Width, img.Height)
	}

	opts := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
	if pdf.Err() {
		return fmt.Errorf("%w: %s", ErrDecode, pdf.Error())
	}

	maxWidth := pageWidth - pageMargin*2
	maxHeight := pageHeight - pageMargin*2

	scale := maxWidth / float64(img.Width)
	if h := maxHeight / float64(img.Height); h < scale {
		scale = h
	}

	width := float64(img.Width) * scale
	height := float64(img.Height) * scale
	x := (pageWidth - width) / 2
	y := (pageHeight - height) / 2

	pdf.AddPage()
	pdf.ImageOptions(name, x, y, width, height, false, opts, 0, "")
	if pdf.Err() {
		return fmt.Errorf("%w: %s", ErrDecode, pdf.Error())
	}
	return nil
}

// fpdfImageType отображает формат захвата в тип изображения fpdf.
func fpdfImageType(format model.ImageFormat) (string, error) {
	switch format {
	case model.FormatJPEG:
		return "JPG", nil
	case model.FormatPNG:
		return "PNG", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImageFormat, format)
	}
}
