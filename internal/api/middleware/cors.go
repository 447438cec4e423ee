// cors.go — разрешающие cross-origin заголовки для endpoint'а доставки.
//
// Интерфейс захвата работает с другого origin, поэтому каждый ответ несёт
// разрешающие CORS-заголовки, а preflight-запрос OPTIONS получает пустой 204
// с теми же заголовками, не доходя до обработчиков.
package middleware

import "net/http"

// CORS возвращает middleware, выставляющий разрешающие cross-origin
// заголовки и отвечающий на preflight-запросы.
func CORS() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
