// Package streak — repository.go читает даты выполнений из журнала activity_results.
package streak

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository читает историю выполнений для подсчёта серии.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий серий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ActivityDays возвращает уникальные дни (UTC) с выполнениями начиная с since.
func (r *Repository) ActivityDays(ctx context.Context, userID int64, since time.Time) ([]time.Time, error) {
	query := `
		SELECT DISTINCT (completed_at AT TIME ZONE 'UTC')::date AS day
		FROM activity_results
		WHERE user_id = $1 AND completed_at >= $2
		ORDER BY day DESC
	`
	rows, err := r.db.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения дней активности: %w", err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("ошибка сканирования дня активности: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}
