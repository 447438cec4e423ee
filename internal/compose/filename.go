// filename.go — построение имени файла составленного документа.
package compose

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// defaultClientName — имя по умолчанию, когда санитизация оставила пустую строку.
const defaultClientName = "cliente"

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	forbiddenRe  = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// SanitizeClientName приводит имя клиента к безопасной для имени файла форме:
// внешние пробелы обрезаются, внутренние заменяются на "_", все символы
// вне [a-zA-Z0-9_-] удаляются. Пустой результат заменяется на "cliente".
func SanitizeClientName(name string) string {
	raw := strings.TrimSpace(name)
	if raw == "" {
		raw = defaultClientName
	}
	raw = whitespaceRe.ReplaceAllString(raw, "_")
	sanitized := forbiddenRe.ReplaceAllString(raw, "")
	if sanitized == "" {
		return defaultClientName
	}
	return sanitized
}

// BuildFilename строит имя файла документа для текущего момента времени.
func BuildFilename(clientName string) string {
	return buildFilenameAt(clientName, time.Now())
}

// buildFilenameAt — детерминированная часть BuildFilename:
// cedula_<имя>_<YYYY-MM-DD>_<HH-MM>.pdf.
func buildFilenameAt(clientName string, now time.Time) string {
	return fmt.Sprintf("cedula_%s_%s_%s.pdf",
		SanitizeClientName(clientName),
		now.Format("2006-01-02"),
		now.Format("15-04"),
	)
}
