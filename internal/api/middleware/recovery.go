package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/rewards-engine/internal/api/response"
)

// Recovery перехватывает панику в обработчике и отвечает 500.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithFields(log.Fields{
					"component":  "panic_recovery",
					"panic":      fmt.Sprintf("%v", rec),
					"path":       r.URL.Path,
					"request_id": RequestIDFrom(r.Context()),
					"stack":      string(debug.Stack()),
				}).Error("ПАНИКА в обработчике — восстановлено")
				response.Error(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
