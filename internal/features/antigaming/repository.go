// Package antigaming — repository.go считает статистику попыток по журналу.
package antigaming

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository читает activity_results.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// PerfectScoresSince — сколько 100% результатов с момента since.
func (r *Repository) PerfectScoresSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM activity_results
		WHERE user_id = $1 AND completed_at >= $2 AND percentage >= 100
	`, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта идеальных результатов: %w", err)
	}
	return count, nil
}

// AttemptsSince — сколько выполнений с момента since.
func (r *Repository) AttemptsSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM activity_results
		WHERE user_id = $1 AND completed_at >= $2
	`, userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток: %w", err)
	}
	return count, nil
}
