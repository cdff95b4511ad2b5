// Package leaderboard — repository.go работает с weekly_leaderboard_cache и
// агрегирует журнал для живого рейтинга.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/rewards-engine/internal/common"
	"serotonyl.ru/rewards-engine/internal/features/members"
)

// rebuildLockClass — первый ключ pg_advisory_xact_lock(int, int) для пересборки недели.
const rebuildLockClass = 7301

// Repository работает с кэшем рейтинга.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий рейтинга.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Accumulate дописывает одно выполнение в строку (участник, неделя).
// Колонки рангов не трогает: их пишет только RebuildWeek.
func (r *Repository) Accumulate(ctx context.Context, userID int64, at time.Time, points, credits int64, percentage int) error {
	weekStart := common.WeekStart(at)
	year, week := weekStart.ISOWeek()

	perfect := 0
	if percentage >= 100 {
		perfect = 1
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO weekly_leaderboard_cache AS c (
			user_id, week_start_date, week_end_date, week_number, year,
			total_points, total_credits, activities_completed, perfect_scores,
			average_percentage, last_calculated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9, NOW())
		ON CONFLICT (user_id, week_start_date) DO UPDATE
		SET total_points = c.total_points + EXCLUDED.total_points,
		    total_credits = c.total_credits + EXCLUDED.total_credits,
		    activities_completed = c.activities_completed + 1,
		    perfect_scores = c.perfect_scores + EXCLUDED.perfect_scores,
		    average_percentage = ROUND(
		        (c.average_percentage * c.activities_completed + EXCLUDED.average_percentage)
		        / (c.activities_completed + 1), 2),
		    last_calculated_at = NOW()
	`, userID, weekStart, common.WeekEnd(weekStart), week, year,
		points, credits, perfect, float64(percentage),
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления недельного кэша: %w", err)
	}
	return nil
}

// RebuildWeek пересобирает неделю из журнала одной транзакцией:
// удаляет строки недели и вставляет свежие суммы с рангами.
// Читатель видит либо старую неделю, либо новую целиком.
func (r *Repository) RebuildWeek(ctx context.Context, weekStart time.Time) (int64, error) {
	weekStart = common.WeekStart(weekStart)
	weekEnd := common.WeekEnd(weekStart)
	nextWeek := weekStart.AddDate(0, 0, 7)
	prevWeek := weekStart.AddDate(0, 0, -7)
	year, week := weekStart.ISOWeek()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Две пересборки одной недели (планировщик и админ) выстраиваются в очередь
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, rebuildLockClass, year*100+week); err != nil {
		return 0, fmt.Errorf("ошибка блокировки пересборки: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM weekly_leaderboard_cache WHERE week_start_date = $1`, weekStart); err != nil {
		return 0, fmt.Errorf("ошибка очистки недели: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		WITH agg AS (
			SELECT r.user_id,
			       SUM(r.points_awarded)::bigint  AS points,
			       SUM(r.credits_awarded)::bigint AS credits,
			       COUNT(*)                       AS activities,
			       COUNT(*) FILTER (WHERE r.percentage >= 100) AS perfect,
			       AVG(r.percentage)              AS avg_pct
			FROM activity_results r
			WHERE r.completed_at >= $1 AND r.completed_at < $2 AND r.rewards_allowed
			GROUP BY r.user_id
		),
		named AS (
			SELECT agg.*, `+members.DisplayNameSQL+` AS display_name
			FROM agg
			JOIN members m ON m.user_id = agg.user_id
		),
		prev AS (
			SELECT user_id, total_points FROM weekly_leaderboard_cache WHERE week_start_date = $5
		),
		best AS (
			SELECT user_id, MAX(total_points) AS best_points
			FROM weekly_leaderboard_cache
			WHERE week_start_date < $3
			GROUP BY user_id
		)
		INSERT INTO weekly_leaderboard_cache (
			user_id, week_start_date, week_end_date, week_number, year,
			total_points, total_credits, activities_completed, perfect_scores, average_percentage,
			points_rank, credits_rank, completion_rank,
			improvement_from_last_week, is_personal_best_week, last_calculated_at
		)
		SELECT n.user_id, $3, $4, $6, $7,
		       n.points, n.credits, n.activities, n.perfect, ROUND(n.avg_pct, 2),
		       ROW_NUMBER() OVER (ORDER BY n.points DESC, n.display_name COLLATE "C" ASC, n.user_id ASC),
		       ROW_NUMBER() OVER (ORDER BY n.credits DESC, n.display_name COLLATE "C" ASC, n.user_id ASC),
		       ROW_NUMBER() OVER (ORDER BY n.activities DESC, n.display_name COLLATE "C" ASC, n.user_id ASC),
		       n.points - p.total_points,
		       n.points > COALESCE(b.best_points, 0),
		       NOW()
		FROM named n
		LEFT JOIN prev p ON p.user_id = n.user_id
		LEFT JOIN best b ON b.user_id = n.user_id
	`, weekStart, nextWeek, weekStart, weekEnd, prevWeek, week, year)
	if err != nil {
		return 0, fmt.Errorf("ошибка пересборки недели %s: %w", weekStart.Format(time.DateOnly), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка коммита пересборки: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ReadWeek читает кэш недели вместе с профилями участников.
func (r *Repository) ReadWeek(ctx context.Context, weekStart time.Time) ([]Aggregate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.user_id, `+members.DisplayNameSQL+`, m.full_name, m.avatar_url,
		       c.total_points, c.total_credits, c.activities_completed, c.perfect_scores,
		       c.average_percentage::float8
		FROM weekly_leaderboard_cache c
		JOIN members m ON m.user_id = c.user_id
		WHERE c.week_start_date = $1
	`, common.WeekStart(weekStart))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения недельного кэша: %w", err)
	}
	return scanAggregates(rows)
}

// LiveAggregate считает суммы по журналу за [from, to). nil — без границы.
// Учитываются только выполнения, за которые награда была разрешена.
func (r *Repository) LiveAggregate(ctx context.Context, from, to *time.Time) ([]Aggregate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.user_id, `+members.DisplayNameSQL+`, m.full_name, m.avatar_url,
		       SUM(r.points_awarded)::bigint, SUM(r.credits_awarded)::bigint, COUNT(*),
		       COUNT(*) FILTER (WHERE r.percentage >= 100),
		       AVG(r.percentage)::float8
		FROM activity_results r
		JOIN members m ON m.user_id = r.user_id
		WHERE r.rewards_allowed
		  AND ($1::timestamptz IS NULL OR r.completed_at >= $1)
		  AND ($2::timestamptz IS NULL OR r.completed_at < $2)
		GROUP BY r.user_id, m.user_id, m.username, m.full_name, m.avatar_url
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("ошибка живого подсчёта рейтинга: %w", err)
	}
	return scanAggregates(rows)
}

// Cleanup удаляет недели старше before и обновляет статистику планировщика БД.
func (r *Repository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM weekly_leaderboard_cache WHERE week_start_date < $1`, common.WeekStart(before))
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления старых недель: %w", err)
	}
	if _, err := r.db.Exec(ctx, `ANALYZE weekly_leaderboard_cache`); err != nil {
		return tag.RowsAffected(), fmt.Errorf("ошибка ANALYZE: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats — статистика участия и состояние кэша текущей недели.
func (r *Repository) Stats(ctx context.Context, weekStart time.Time) (Stats, error) {
	var s Stats
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(DISTINCT user_id) FILTER (WHERE rewards_allowed), COUNT(*)
		FROM activity_results
	`).Scan(&s.TotalParticipants, &s.TotalActivities)
	if err != nil {
		return Stats{}, fmt.Errorf("ошибка подсчёта статистики журнала: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		SELECT COUNT(*), MAX(last_calculated_at)
		FROM weekly_leaderboard_cache
		WHERE week_start_date = $1
	`, common.WeekStart(weekStart)).Scan(&s.CurrentWeekEntries, &s.LastCacheUpdate)
	if err != nil {
		return Stats{}, fmt.Errorf("ошибка подсчёта статистики кэша: %w", err)
	}

	s.WeekStart = common.WeekStart(weekStart).Format(time.DateOnly)
	return s, nil
}

func scanAggregates(rows pgx.Rows) ([]Aggregate, error) {
	defer rows.Close()

	var out []Aggregate
	for rows.Next() {
		var a Aggregate
		if err := rows.Scan(
			&a.UserID, &a.DisplayName, &a.FullName, &a.AvatarURL,
			&a.Points, &a.Credits, &a.Activities, &a.PerfectScores,
			&a.AveragePercentage,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки рейтинга: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк рейтинга: %w", err)
	}
	return out, nil
}
