// Package middleware содержит промежуточные обработчики HTTP API:
// идентификатор запроса, логирование, восстановление после паники,
// rate-limiting, пользователь из заголовка и админская авторизация.
package middleware

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// responseWriter запоминает код ответа для лога.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logger логирует каждый запрос: метод, путь, код, длительность,
// request_id и user_id (если есть).
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		fields := log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  RequestIDFrom(r.Context()),
		}
		if userID, ok := UserIDFrom(r.Context()); ok {
			fields["user_id"] = userID
		}

		entry := log.WithFields(fields)
		switch {
		case rw.status >= http.StatusInternalServerError:
			entry.Error("Запрос завершился ошибкой")
		case rw.status >= http.StatusBadRequest:
			entry.Info("Запрос отклонён")
		default:
			entry.Debug("Запрос обработан")
		}
	})
}
