// Package leaderboard — engine.go отвечает на запросы рейтинга.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"serotonyl.ru/rewards-engine/internal/common"
	"serotonyl.ru/rewards-engine/internal/settings"
)

// Store — хранилище рейтинга (в приложении это *Repository).
type Store interface {
	ReadWeek(ctx context.Context, weekStart time.Time) ([]Aggregate, error)
	LiveAggregate(ctx context.Context, from, to *time.Time) ([]Aggregate, error)
	RebuildWeek(ctx context.Context, weekStart time.Time) (int64, error)
	Cleanup(ctx context.Context, before time.Time) (int64, error)
	Stats(ctx context.Context, weekStart time.Time) (Stats, error)
}

// SnapshotSource — текущие настройки.
type SnapshotSource interface {
	Snapshot(ctx context.Context) settings.Snapshot
}

// Engine — ранжирование поверх кэша и журнала.
type Engine struct {
	store    Store
	settings SnapshotSource
	rebuilds singleflight.Group
	now      func() time.Time
}

// NewEngine создаёт движок рейтинга.
func NewEngine(store Store, settings SnapshotSource) *Engine {
	return &Engine{store: store, settings: settings, now: time.Now}
}

// Rankings отвечает на запрос рейтинга.
//
// Недельный рейтинг берётся из кэша. Если кэш текущей недели пуст или не
// читается, считаем по журналу. Месяц и всё время всегда считаются по журналу.
func (e *Engine) Rankings(ctx context.Context, q Query) (*Ranking, error) {
	snap := e.settings.Snapshot(ctx)
	if !snap.LeaderboardPublicEnabled {
		return nil, common.ErrLeaderboardDisabled
	}

	limit, err := NormalizeLimit(q.Limit, q.Offset, snap.LeaderboardMaxEntries)
	if err != nil {
		return nil, err
	}

	rows, source, from, err := e.load(ctx, q.Window)
	if err != nil {
		return nil, err
	}

	ranked := SortAndRank(rows)
	page := Page(ranked, limit, q.Offset)
	for i := range page {
		page[i].IsRequestingUser = q.RequestingUserID != 0 && page[i].UserID == q.RequestingUserID
	}
	ApplyPrivacy(page, snap)

	out := &Ranking{
		Type:              q.Window,
		PeriodStart:       formatDate(from),
		Participants:      page,
		TotalParticipants: len(ranked),
		Source:            source,
	}
	if rank := RankOf(ranked, q.RequestingUserID); rank > 0 {
		out.RequestingUserRank = &rank
	}
	return out, nil
}

// Top возвращает первые n участников законченного периода, начавшегося в
// periodStart. Используется для объявления победителей, приватность не применяется.
func (e *Engine) Top(ctx context.Context, w Window, periodStart time.Time, n int) ([]Participant, error) {
	var rows []Aggregate
	var err error

	switch w {
	case Weekly:
		rows, err = e.store.ReadWeek(ctx, periodStart)
		if err == nil && len(rows) == 0 {
			from := common.WeekStart(periodStart)
			to := from.AddDate(0, 0, 7)
			rows, err = e.store.LiveAggregate(ctx, &from, &to)
		}
	case Monthly:
		from := common.MonthStart(periodStart)
		to := from.AddDate(0, 1, 0)
		rows, err = e.store.LiveAggregate(ctx, &from, &to)
	default:
		rows, err = e.store.LiveAggregate(ctx, nil, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения победителей (%s): %w", w, err)
	}

	ranked := SortAndRank(rows)
	return Page(ranked, n, 0), nil
}

// UserRanking — места участника во всех трёх периодах.
func (e *Engine) UserRanking(ctx context.Context, userID int64) (*UserRanking, error) {
	if userID <= 0 {
		return nil, common.ErrUserNotFound
	}

	out := &UserRanking{
		UserID:    userID,
		WeekStart: common.WeekStart(e.now()).Format(time.DateOnly),
	}
	for _, w := range Windows {
		rows, _, _, err := e.load(ctx, w)
		if err != nil {
			return nil, err
		}
		ranked := SortAndRank(rows)

		var rank *int
		var score int64
		for _, p := range ranked {
			if p.UserID == userID {
				r := p.Rank
				rank, score = &r, p.Score
				break
			}
		}

		switch w {
		case Weekly:
			out.WeeklyRank, out.WeeklyScore = rank, score
			out.WeeklyEntries = len(ranked)
		case Monthly:
			out.MonthlyRank, out.MonthlyScore = rank, score
		case AllTime:
			out.AllTimeRank, out.AllTimeScore = rank, score
		}
	}
	return out, nil
}

// Stats — статистика участия.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	s, err := e.store.Stats(ctx, e.now())
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Rebuild пересобирает неделю. Одновременные вызовы для одной недели внутри
// процесса схлопываются в один.
func (e *Engine) Rebuild(ctx context.Context, weekStart time.Time) (int64, error) {
	weekStart = common.WeekStart(weekStart)
	key := weekStart.Format(time.DateOnly)

	v, err, shared := e.rebuilds.Do(key, func() (any, error) {
		started := time.Now()
		n, err := e.store.RebuildWeek(ctx, weekStart)
		if err != nil {
			return int64(0), err
		}
		log.WithFields(log.Fields{
			"week":     key,
			"entries":  n,
			"duration": time.Since(started).String(),
		}).Info("Недельный кэш пересобран")
		return n, nil
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка пересборки недели %s: %w", key, err)
	}
	if shared {
		log.WithField("week", key).Debug("Пересборка недели уже шла, результат переиспользован")
	}
	return v.(int64), nil
}

// RebuildCurrent пересобирает текущую неделю.
func (e *Engine) RebuildCurrent(ctx context.Context) (int64, error) {
	return e.Rebuild(ctx, e.now())
}

// Cleanup удаляет недели старше retainWeeks от текущей.
func (e *Engine) Cleanup(ctx context.Context, retainWeeks int) (int64, error) {
	if retainWeeks <= 0 {
		return 0, errors.New("retainWeeks должен быть положительным")
	}
	before := common.WeekStart(e.now()).AddDate(0, 0, -7*retainWeeks)
	n, err := e.store.Cleanup(ctx, before)
	if err != nil {
		return n, err
	}
	log.WithFields(log.Fields{
		"before":  before.Format(time.DateOnly),
		"deleted": n,
	}).Info("Старые недели удалены из кэша")
	return n, nil
}

// load возвращает суммы за текущий период окна и источник данных.
func (e *Engine) load(ctx context.Context, w Window) ([]Aggregate, string, *time.Time, error) {
	from, to := w.Period(e.now())

	switch w {
	case Weekly:
		rows, err := e.store.ReadWeek(ctx, *from)
		if err == nil && len(rows) > 0 {
			return rows, SourceCache, from, nil
		}
		if err != nil {
			log.WithError(err).Warn("Недельный кэш недоступен, считаем по журналу")
		}
	case Monthly, AllTime:
	default:
		return nil, "", nil, fmt.Errorf("%q: %w", w, common.ErrInvalidWindow)
	}

	rows, err := e.store.LiveAggregate(ctx, from, to)
	if err != nil {
		return nil, "", nil, fmt.Errorf("ошибка подсчёта рейтинга (%s): %w", w, err)
	}
	return rows, SourceLive, from, nil
}
