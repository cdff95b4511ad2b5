// Package antigaming решает, можно ли начислять награду за выполнение.
//
// Для остальной системы это непрозрачный булев вердикт: если награду
// начислять нельзя, результат всё равно пишется в журнал, но с нулевыми
// суммами, и недельный кэш рейтинга не обновляется.
package antigaming

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/rewards-engine/internal/common"
	"serotonyl.ru/rewards-engine/internal/settings"
)

// Attempt — одно выполнение задания, которое надо оценить.
type Attempt struct {
	UserID            int64
	ActivityID        int64
	Percentage        int
	CompletionSeconds *int
	CompletedAt       time.Time
	RemoteAddr        string
}

// Verdict — решение гейта.
type Verdict struct {
	AllowRewards bool
	RiskScore    float64
	Reasons      []string
}

// Gate — интерфейс гейта.
type Gate interface {
	Evaluate(ctx context.Context, a Attempt) (Verdict, error)
}

// AllowAll пропускает всё (ANTIGAMING_ENABLED=false).
type AllowAll struct{}

// Evaluate всегда разрешает награду.
func (AllowAll) Evaluate(context.Context, Attempt) (Verdict, error) {
	return Verdict{AllowRewards: true}, nil
}

// StatsSource — статистика по журналу для эвристик.
type StatsSource interface {
	PerfectScoresSince(ctx context.Context, userID int64, since time.Time) (int, error)
	AttemptsSince(ctx context.Context, userID int64, since time.Time) (int, error)
}

// SnapshotSource отдаёт текущие настройки (в приложении это *settings.Provider).
type SnapshotSource interface {
	Snapshot(ctx context.Context) settings.Snapshot
}

// Вклад каждой эвристики в итоговый риск
const (
	riskTooFast       = 0.3
	riskManyPerfect   = 0.4
	riskRapidAttempts = 0.2
)

// HeuristicGate — эвристики по времени выполнения и частоте попыток.
type HeuristicGate struct {
	stats    StatsSource
	settings SnapshotSource
}

// NewHeuristicGate создаёт гейт с эвристиками.
func NewHeuristicGate(stats StatsSource, settings SnapshotSource) *HeuristicGate {
	return &HeuristicGate{stats: stats, settings: settings}
}

// Evaluate считает риск и сравнивает его с порогом из настроек.
// Текущая попытка ещё не в журнале, поэтому учитывается отдельно.
func (g *HeuristicGate) Evaluate(ctx context.Context, a Attempt) (Verdict, error) {
	snap := g.settings.Snapshot(ctx)
	var risk float64
	var reasons []string

	if a.CompletionSeconds != nil && *a.CompletionSeconds < snap.AntiGamingMinSeconds {
		risk += riskTooFast
		reasons = append(reasons, fmt.Sprintf("completed in %ds", *a.CompletionSeconds))
	}

	perfect, err := g.stats.PerfectScoresSince(ctx, a.UserID, common.DayStart(a.CompletedAt))
	if err != nil {
		return Verdict{}, fmt.Errorf("ошибка подсчёта идеальных результатов: %w", err)
	}
	if a.Percentage >= 100 {
		perfect++
	}
	if perfect >= snap.AntiGamingMaxPerfectPerDay {
		risk += riskManyPerfect
		reasons = append(reasons, fmt.Sprintf("%d perfect scores today", perfect))
	}

	attempts, err := g.stats.AttemptsSince(ctx, a.UserID, a.CompletedAt.Add(-time.Hour))
	if err != nil {
		return Verdict{}, fmt.Errorf("ошибка подсчёта попыток: %w", err)
	}
	attempts++
	if attempts >= snap.AntiGamingMaxAttemptsPerHour {
		risk += riskRapidAttempts
		reasons = append(reasons, fmt.Sprintf("%d attempts in the last hour", attempts))
	}

	risk = common.Round2(risk)
	v := Verdict{
		AllowRewards: risk < snap.AntiGamingRiskThreshold,
		RiskScore:    risk,
		Reasons:      reasons,
	}

	if !v.AllowRewards {
		log.WithFields(log.Fields{
			"user_id":     a.UserID,
			"activity_id": a.ActivityID,
			"risk":        risk,
			"reasons":     reasons,
			"remote_addr": a.RemoteAddr,
		}).Warn("Подозрительное выполнение, награда заблокирована")
	}
	return v, nil
}
