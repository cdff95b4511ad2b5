// Package members — repository.go отвечает за все операции с таблицей members в БД.
// Каждая функция выполняет один SQL-запрос и возвращает результат или ошибку.
package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/rewards-engine/internal/common"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Upsert создаёт участника или обновляет непустые поля профиля.
// Накопленные суммы не трогает. Возвращает актуальную запись.
func (r *Repository) Upsert(ctx context.Context, p Profile) (*Member, error) {
	query := `
		INSERT INTO members (user_id, username, full_name, avatar_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET username   = COALESCE(NULLIF(EXCLUDED.username, ''), members.username),
		    full_name  = COALESCE(NULLIF(EXCLUDED.full_name, ''), members.full_name),
		    avatar_url = COALESCE(NULLIF(EXCLUDED.avatar_url, ''), members.avatar_url),
		    updated_at = NOW()
		RETURNING id, user_id, username, full_name, avatar_url,
		          total_points, total_credits, created_at, updated_at
	`
	var m Member
	err := r.db.QueryRow(ctx, query, p.UserID, p.Username, p.FullName, p.AvatarURL).Scan(
		&m.ID, &m.UserID, &m.Username, &m.FullName, &m.AvatarURL,
		&m.TotalPoints, &m.TotalCredits, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания/обновления участника: %w", err)
	}
	return &m, nil
}

// GetByUserID: если не найден — common.ErrUserNotFound.
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	query := `
		SELECT id, user_id, username, full_name, avatar_url,
		       total_points, total_credits, created_at, updated_at
		FROM members
		WHERE user_id = $1
	`
	var m Member
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&m.ID, &m.UserID, &m.Username, &m.FullName, &m.AvatarURL,
		&m.TotalPoints, &m.TotalCredits, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("участник user_id=%d: %w", userID, common.ErrUserNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения участника (user_id=%d): %w", userID, err)
	}
	return &m, nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM members`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта участников: %w", err)
	}
	return n, nil
}
