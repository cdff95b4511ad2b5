// Package streak — service.go связывает журнал и подсчёт серии.
package streak

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/rewards-engine/internal/common"
)

// DaysSource — откуда берутся дни выполнений (в приложении это *Repository).
type DaysSource interface {
	ActivityDays(ctx context.Context, userID int64, since time.Time) ([]time.Time, error)
}

// Service считает текущую серию пользователя.
type Service struct {
	repo DaysSource
}

// NewService создаёт сервис серий.
func NewService(repo DaysSource) *Service {
	return &Service{repo: repo}
}

// Current возвращает серию с учётом выполнения в момент at.
// Ошибка БД не ломает начисление: серия считается нулевой.
func (s *Service) Current(ctx context.Context, userID int64, at time.Time) int {
	today := common.DayStart(at)
	since := today.AddDate(0, 0, -WindowDays)

	days, err := s.repo.ActivityDays(ctx, userID, since)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка подсчёта серии, считаем 0")
		return 0
	}

	// Текущее выполнение ещё может быть не в журнале — учитываем его явно
	days = append(days, today)
	return Count(days, today)
}
