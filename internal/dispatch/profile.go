// profile.go — разрешение профиля отправителя по ключу запроса.
package dispatch

import (
	"strings"
	"unicode"

	"github.com/Jhonny-Kenneth/lector-id/internal/config"
	"github.com/Jhonny-Kenneth/lector-id/internal/domain/model"
)

// ResolveProfile разрешает профиль отправителя по ключу запроса.
//
// Ключ сравнивается без учёта регистра и внешних пробелов. Отсутствующий
// или нераспознанный ключ даёт профиль по умолчанию; у найденного профиля
// каждое незаполненное поле добирается из профиля по умолчанию.
//
// Секрет нормализуется здесь, один раз на запрос: из него удаляются все
// внутренние пробельные символы (операторы иногда вставляют секреты
// с разделителями). Дальше по конвейеру ходит только нормализованная форма.
func ResolveProfile(cfg *config.Config, senderKey string) model.SenderProfile {
	resolved := cfg.DefaultSender

	key := strings.ToLower(strings.TrimSpace(senderKey))
	if key != "" {
		if named, ok := cfg.SenderProfiles[key]; ok {
			if named.User != "" {
				resolved.User = named.User
			}
			if named.Pass != "" {
				resolved.Pass = named.Pass
			}
			if named.From != "" {
				resolved.From = named.From
			}
			if named.FromName != "" {
				resolved.FromName = named.FromName
			}
		}
	}

	resolved.Pass = normalizeSecret(resolved.Pass)
	return resolved
}

// normalizeSecret удаляет из секрета все пробельные символы,
// включая внутренние.
func normalizeSecret(secret string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, secret)
}
