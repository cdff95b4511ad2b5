// Package common — errors.go определяет ошибки, которые используются во всех
// модулях движка наград и рейтингов.
// API-слой различает их через errors.Is и отдаёт клиенту понятный HTTP-код.
package common

import "errors"

// Ошибки начисления наград
var (
	// ErrInvalidPercentage — процент выполнения вне диапазона 0..100
	ErrInvalidPercentage = errors.New("процент должен быть в диапазоне 0..100")
	// ErrInvalidAmount — базовая награда отрицательная или больше допустимой
	ErrInvalidAmount = errors.New("базовая награда вне допустимого диапазона")
	// ErrInvalidDuration — отрицательное время выполнения
	ErrInvalidDuration = errors.New("время выполнения не может быть отрицательным")
	// ErrInvalidCompletedAt — время выполнения слишком далеко от текущего
	ErrInvalidCompletedAt = errors.New("время выполнения вне допустимого окна")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
	// ErrRateLimited — слишком много завершений за короткое время
	ErrRateLimited = errors.New("слишком много запросов, попробуйте позже")
)

// Ошибки рейтингов
var (
	// ErrInvalidWindow — неизвестный тип рейтинга (не weekly/monthly/alltime)
	ErrInvalidWindow = errors.New("неизвестный тип рейтинга")
	// ErrInvalidPagination — limit вне 1..100 или отрицательный offset
	ErrInvalidPagination = errors.New("некорректные параметры пагинации")
	// ErrLeaderboardDisabled — публичные рейтинги отключены в настройках
	ErrLeaderboardDisabled = errors.New("публичные рейтинги отключены")
)

// Ошибки планировщика
var (
	// ErrSchedulerRunning — планировщик уже запущен
	ErrSchedulerRunning = errors.New("планировщик уже запущен")
	// ErrSchedulerIdle — планировщик не запущен
	ErrSchedulerIdle = errors.New("планировщик не запущен")
	// ErrLockNotAcquired — другой инстанс держит блокировку обслуживания
	ErrLockNotAcquired = errors.New("блокировка обслуживания занята другим инстансом")
)

// Ошибки админки
var (
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrSessionExpired — сессия истекла или не найдена
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
)
