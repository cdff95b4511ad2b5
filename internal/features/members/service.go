// Package members — service.go содержит бизнес-логику управления участниками.
package members

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/rewards-engine/internal/common"
)

// Store — операции репозитория, которые нужны сервису.
type Store interface {
	Upsert(ctx context.Context, p Profile) (*Member, error)
	GetByUserID(ctx context.Context, userID int64) (*Member, error)
}

// Service управляет участниками.
type Service struct {
	repo Store
}

// NewService создаёт новый сервис участников.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Ensure гарантирует, что участник есть в базе, и освежает профиль.
// Вызывается перед каждым начислением: из записи берутся очки за всё время.
func (s *Service) Ensure(ctx context.Context, p Profile) (*Member, error) {
	if p.UserID <= 0 {
		return nil, fmt.Errorf("user_id=%d: %w", p.UserID, common.ErrUserNotFound)
	}

	m, err := s.repo.Upsert(ctx, p)
	if err != nil {
		return nil, err
	}

	if m.CreatedAt.Equal(m.UpdatedAt) {
		log.WithFields(log.Fields{
			"user_id":  p.UserID,
			"username": p.Username,
		}).Info("Новый участник зарегистрирован")
	}
	return m, nil
}

// Get возвращает участника по ID.
func (s *Service) Get(ctx context.Context, userID int64) (*Member, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// LifetimePoints возвращает очки за всё время; для неизвестного участника — 0.
func (s *Service) LifetimePoints(ctx context.Context, userID int64) (int64, error) {
	m, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return m.TotalPoints, nil
}
