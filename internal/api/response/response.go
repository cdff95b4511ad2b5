// Package response формирует JSON-ответы API в едином конверте
// {success, data, error, message}.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/rewards-engine/internal/common"
)

// APIResponse — конверт всех ответов.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// JSON пишет payload с кодом status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).Error("Ошибка сериализации ответа")
	}
}

// OK — успешный ответ с данными.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// Message — успешный ответ с текстом.
func Message(w http.ResponseWriter, msg string, data any) {
	JSON(w, http.StatusOK, APIResponse{Success: true, Message: msg, Data: data})
}

// Error — ответ с ошибкой.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, APIResponse{Success: false, Error: msg})
}

// FromError выбирает HTTP-код по ошибке. Неизвестные ошибки отдаются как 500
// без подробностей, подробности пишутся в лог.
func FromError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("Внутренняя ошибка обработки запроса")
		Error(w, status, "внутренняя ошибка сервера")
		return
	}
	Error(w, status, err.Error())
}

// StatusFor сопоставляет доменные ошибки с HTTP-кодами.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidPercentage),
		errors.Is(err, common.ErrInvalidAmount),
		errors.Is(err, common.ErrInvalidDuration),
		errors.Is(err, common.ErrInvalidCompletedAt),
		errors.Is(err, common.ErrInvalidWindow),
		errors.Is(err, common.ErrInvalidPagination):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrLeaderboardDisabled):
		return http.StatusForbidden
	case errors.Is(err, common.ErrRateLimited),
		errors.Is(err, common.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, common.ErrWrongPassword),
		errors.Is(err, common.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrSchedulerRunning),
		errors.Is(err, common.ErrSchedulerIdle),
		errors.Is(err, common.ErrLockNotAcquired):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
