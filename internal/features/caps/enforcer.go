// Package caps ограничивает, сколько очков и кредитов пользователь может
// получить за календарный день (UTC).
//
// Уже начисленное считается по журналу activity_results, а не по отдельному
// счётчику: журнал — единственный источник правды.
package caps

import (
	"context"
	"fmt"
	"time"

	"serotonyl.ru/rewards-engine/internal/common"
	"serotonyl.ru/rewards-engine/internal/settings"
)

// Verdict — что произошло с одной валютой.
type Verdict int

const (
	// Full — лимит не мешает, начисляем всё
	Full Verdict = iota
	// Clipped — начисляем только остаток до лимита
	Clipped
	// Rejected — остаток ровно ноль (или меньше), ничего не начисляем
	Rejected
)

func (v Verdict) String() string {
	switch v {
	case Full:
		return "full"
	case Clipped:
		return "clipped"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Decision — результат ограничения одной валюты.
type Decision struct {
	Awarded int64
	Verdict Verdict
}

// Limited — было ли срезано или отклонено.
func (d Decision) Limited() bool {
	return d.Verdict != Full
}

// Clip ограничивает предложенную сумму остатком дневного лимита.
// limit ≤ 0 означает «лимита нет».
func Clip(awardedToday, limit, proposed int64) Decision {
	if limit <= 0 || proposed <= 0 {
		return Decision{Awarded: max(proposed, 0), Verdict: Full}
	}

	remaining := limit - awardedToday
	switch {
	case remaining <= 0:
		return Decision{Awarded: 0, Verdict: Rejected}
	case proposed > remaining:
		return Decision{Awarded: remaining, Verdict: Clipped}
	default:
		return Decision{Awarded: proposed, Verdict: Full}
	}
}

// Totals — сколько уже начислено за день.
type Totals struct {
	Points  int64
	Credits int64
}

// Outcome — результат по обеим валютам.
type Outcome struct {
	Points  Decision
	Credits Decision
}

// WasLimited — хотя бы одна валюта срезана или отклонена.
func (o Outcome) WasLimited() bool {
	return o.Points.Limited() || o.Credits.Limited()
}

// Rejected — обе валюты отклонены целиком.
func (o Outcome) Rejected() bool {
	return o.Points.Verdict == Rejected && o.Credits.Verdict == Rejected
}

// TotalsReader читает начисленное за день. Вызывается внутри транзакции,
// которая держит пользовательскую блокировку, поэтому чтение и последующая
// запись не пересекаются с параллельным выполнением того же пользователя.
type TotalsReader interface {
	DailyTotals(ctx context.Context, userID int64, dayStart, dayEnd time.Time) (Totals, error)
}

// Apply применяет оба дневных лимита к предложенной награде.
func Apply(ctx context.Context, r TotalsReader, snap settings.Snapshot, userID int64, at time.Time, points, credits int64) (Outcome, error) {
	dayStart := common.DayStart(at)
	totals, err := r.DailyTotals(ctx, userID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return Outcome{}, fmt.Errorf("ошибка получения дневных сумм: %w", err)
	}

	return Outcome{
		Points:  Clip(totals.Points, snap.DailyPointsLimit, points),
		Credits: Clip(totals.Credits, snap.DailyCreditCap, credits),
	}, nil
}
