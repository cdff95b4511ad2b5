// Package activity — repository.go пишет журнал activity_results и суммы участников.
//
// Всё, что относится к одному начислению, выполняется в одной транзакции под
// pg_advisory_xact_lock(user_id): подсчёт дневных сумм, вставка результата и
// обновление members. Два параллельных выполнения одного пользователя
// выстраиваются в очередь и не могут вдвоём превысить дневной лимит.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/rewards-engine/internal/features/caps"
)

// querier — общее у пула и транзакции.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository работает с журналом.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий журнала.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// InUserTx выполняет fn в транзакции, держащей блокировку пользователя.
// Ошибка fn откатывает всё.
func (r *Repository) InUserTx(ctx context.Context, userID int64, fn func(ctx context.Context, tx LedgerTx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, userID); err != nil {
		return fmt.Errorf("ошибка блокировки пользователя %d: %w", userID, err)
	}

	if err := fn(ctx, &ledgerTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка коммита начисления: %w", err)
	}
	return nil
}

// DailyTotals вне транзакции, для предпросмотра.
func (r *Repository) DailyTotals(ctx context.Context, userID int64, dayStart, dayEnd time.Time) (caps.Totals, error) {
	return dailyTotals(ctx, r.db, userID, dayStart, dayEnd)
}

// ledgerTx — операции внутри InUserTx.
type ledgerTx struct {
	q querier
}

func (t *ledgerTx) DailyTotals(ctx context.Context, userID int64, dayStart, dayEnd time.Time) (caps.Totals, error) {
	return dailyTotals(ctx, t.q, userID, dayStart, dayEnd)
}

// InsertResult добавляет строку в журнал и заполняет res.ID.
func (t *ledgerTx) InsertResult(ctx context.Context, res *Result) error {
	query := `
		INSERT INTO activity_results (
			user_id, activity_id, percentage, completion_seconds, completed_at,
			points_awarded, credits_awarded, tier, bonuses,
			was_limited, rewards_allowed, risk_score, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	err := t.q.QueryRow(ctx, query,
		res.UserID, res.ActivityID, res.Percentage, res.CompletionSeconds, res.CompletedAt,
		res.PointsAwarded, res.CreditsAwarded, res.Tier, res.Bonuses,
		res.WasLimited, res.RewardsAllowed, res.RiskScore, res.RecordedAt,
	).Scan(&res.ID)
	if err != nil {
		return fmt.Errorf("ошибка записи результата в журнал: %w", err)
	}
	return nil
}

// AddMemberTotals увеличивает накопленные очки и кредиты участника.
func (t *ledgerTx) AddMemberTotals(ctx context.Context, userID, points, credits int64) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE members
		SET total_points = total_points + $2,
		    total_credits = total_credits + $3,
		    updated_at = NOW()
		WHERE user_id = $1
	`, userID, points, credits)
	if err != nil {
		return fmt.Errorf("ошибка обновления сумм участника: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("участник %d не найден при обновлении сумм", userID)
	}
	return nil
}

func dailyTotals(ctx context.Context, q querier, userID int64, dayStart, dayEnd time.Time) (caps.Totals, error) {
	var t caps.Totals
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(points_awarded), 0)::bigint, COALESCE(SUM(credits_awarded), 0)::bigint
		FROM activity_results
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
	`, userID, dayStart, dayEnd).Scan(&t.Points, &t.Credits)
	if err != nil {
		return caps.Totals{}, fmt.Errorf("ошибка подсчёта дневных сумм: %w", err)
	}
	return t, nil
}
