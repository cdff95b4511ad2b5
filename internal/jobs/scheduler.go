// Package jobs управляет фоновыми задачами (cron) обслуживания рейтинга:
// пересборка текущей недели, недельный и месячный сбросы с объявлением
// победителей, удаление старых недель.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/rewards-engine/internal/common"
	"serotonyl.ru/rewards-engine/internal/features/announce"
	"serotonyl.ru/rewards-engine/internal/features/leaderboard"
	"serotonyl.ru/rewards-engine/internal/settings"
)

// Имена задач
const (
	LoopRefresh      = "refresh"
	LoopWeeklyReset  = "weekly_reset"
	LoopMonthlyReset = "monthly_reset"
	LoopCleanup      = "cleanup"
)

// maxAttempts — сколько раз пробуем итерацию, прежде чем ждать следующего срабатывания.
const maxAttempts = 3

// winnersCount — сколько победителей объявляем.
const winnersCount = 3

// Maintainer — операции движка рейтинга, которые нужны планировщику.
type Maintainer interface {
	Rebuild(ctx context.Context, weekStart time.Time) (int64, error)
	Cleanup(ctx context.Context, retainWeeks int) (int64, error)
	Top(ctx context.Context, w leaderboard.Window, periodStart time.Time, n int) ([]leaderboard.Participant, error)
	Stats(ctx context.Context) (*leaderboard.Stats, error)
}

// SnapshotSource — текущие настройки.
type SnapshotSource interface {
	Snapshot(ctx context.Context) settings.Snapshot
}

// State — состояние планировщика.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// loop — одна периодическая задача.
type loop struct {
	name     string
	schedule string
	backoff  time.Duration
	run      func(ctx context.Context) error

	entryID     cron.EntryID
	lastRun     time.Time
	lastSuccess time.Time
	lastError   string
	runs        int
	failures    int
}

// LoopStatus — состояние задачи для /admin/jobs/status.
type LoopStatus struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Backoff     string     `json:"retry_backoff"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Runs        int        `json:"runs"`
	Failures    int        `json:"failures"`
	NextRun     *time.Time `json:"next_run,omitempty"`
}

// Status — общее состояние планировщика.
type Status struct {
	State              State        `json:"state"`
	Loops              []LoopStatus `json:"loops"`
	CurrentWeekEntries int64        `json:"current_week_entries"`
	LastCacheUpdate    *time.Time   `json:"last_cache_update,omitempty"`
}

// Scheduler управляет фоновыми задачами.
// Это обычный объект: его создаёт app и передаёт в API, глобального состояния нет.
type Scheduler struct {
	engine    Maintainer
	announcer announce.Announcer
	locker    Locker
	settings  SnapshotSource
	retention int

	mu     sync.Mutex
	state  State
	cron   *cron.Cron
	cancel context.CancelFunc
	loops  []*loop

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewScheduler создаёт планировщик в состоянии idle.
func NewScheduler(engine Maintainer, announcer announce.Announcer, locker Locker, settings SnapshotSource, retentionWeeks int) *Scheduler {
	s := &Scheduler{
		engine:    engine,
		announcer: announcer,
		locker:    locker,
		settings:  settings,
		retention: retentionWeeks,
		state:     StateIdle,
		now:       time.Now,
		sleep:     sleepCtx,
	}
	s.loops = []*loop{
		{name: LoopRefresh, schedule: "@every 30m", backoff: 5 * time.Minute, run: s.refreshCurrent},
		{name: LoopWeeklyReset, schedule: "0 0 * * 1", backoff: 10 * time.Minute, run: s.ResetWeekly},
		{name: LoopMonthlyReset, schedule: "0 1 1 * *", backoff: time.Hour, run: s.ResetMonthly},
		{name: LoopCleanup, schedule: "0 2 * * *", backoff: time.Hour, run: s.Cleanup},
	}
	return s
}

// Start запускает все задачи. Повторный запуск — common.ErrSchedulerRunning.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return common.ErrSchedulerRunning
	}

	logger := cron.VerbosePrintfLogger(log.StandardLogger())
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	for _, l := range s.loops {
		id, err := c.AddFunc(l.schedule, func() { s.runLoop(runCtx, l) })
		if err != nil {
			cancel()
			return fmt.Errorf("ошибка регистрации задачи %s: %w", l.name, err)
		}
		l.entryID = id
	}

	c.Start()
	s.cron = c
	s.cancel = cancel
	s.state = StateRunning

	log.WithField("loops", len(s.loops)).Info("Планировщик задач запущен (UTC)")
	return nil
}

// Stop останавливает планировщик и ждёт завершения текущих итераций.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return common.ErrSchedulerIdle
	}
	c, cancel := s.cron, s.cancel
	s.state = StateIdle
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()

	// Отмена прерывает ожидание повтора, cron дожидается работающих задач
	cancel()
	ctx := c.Stop()
	<-ctx.Done()

	log.Info("Планировщик задач остановлен")
	return nil
}

// State возвращает текущее состояние.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status собирает состояние задач и кэша текущей недели.
func (s *Scheduler) Status(ctx context.Context) Status {
	s.mu.Lock()
	st := Status{State: s.state}
	for _, l := range s.loops {
		ls := LoopStatus{
			Name:      l.name,
			Schedule:  l.schedule,
			Backoff:   l.backoff.String(),
			LastError: l.lastError,
			Runs:      l.runs,
			Failures:  l.failures,
		}
		ls.LastRun = timePtr(l.lastRun)
		ls.LastSuccess = timePtr(l.lastSuccess)
		if s.cron != nil {
			ls.NextRun = timePtr(s.cron.Entry(l.entryID).Next)
		}
		st.Loops = append(st.Loops, ls)
	}
	s.mu.Unlock()

	stats, err := s.engine.Stats(ctx)
	if err != nil {
		log.WithError(err).Warn("Не удалось получить состояние кэша для статуса планировщика")
		return st
	}
	st.CurrentWeekEntries = stats.CurrentWeekEntries
	st.LastCacheUpdate = stats.LastCacheUpdate
	return st
}

// runLoop выполняет одну итерацию с повторами. Ошибка никогда не выходит
// за пределы задачи: она пишется в лог и в статус.
func (s *Scheduler) runLoop(ctx context.Context, l *loop) {
	entry := log.WithField("job", l.name)

	release, acquired, err := s.locker.Acquire(ctx, l.name, l.backoff*maxAttempts+time.Hour)
	if err != nil {
		entry.WithError(err).Error("[CRON] Ошибка захвата блокировки")
		s.record(l, err)
		return
	}
	if !acquired {
		entry.Debug("[CRON] Задачу выполняет другой инстанс, пропускаем")
		return
	}
	defer release()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		started := time.Now()
		err := l.run(ctx)
		s.record(l, err)

		if err == nil {
			entry.WithFields(log.Fields{
				"attempt":  attempt,
				"duration": time.Since(started).String(),
			}).Info("[CRON] Задача выполнена")
			return
		}

		entry.WithError(err).WithField("attempt", attempt).Error("[CRON] Ошибка выполнения задачи")
		if attempt == maxAttempts {
			entry.Warn("[CRON] Попытки исчерпаны, ждём следующего срабатывания")
			return
		}
		if err := s.sleep(ctx, l.backoff); err != nil {
			entry.Info("[CRON] Повтор отменён: планировщик остановлен")
			return
		}
	}
}

func (s *Scheduler) record(l *loop, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.lastRun = s.now()
	l.runs++
	if err != nil {
		l.failures++
		l.lastError = err.Error()
		return
	}
	l.lastSuccess = l.lastRun
	l.lastError = ""
}

// --- Операции (их же вызывает админский API) ---

func (s *Scheduler) refreshCurrent(ctx context.Context) error {
	_, err := s.engine.Rebuild(ctx, s.now())
	return err
}

// ForceRefresh пересобирает кэш для окна. Месяц и всё время считаются по
// журналу и своего кэша не имеют, поэтому для них пересобирается текущая неделя.
func (s *Scheduler) ForceRefresh(ctx context.Context, w leaderboard.Window) (int64, error) {
	if w != "" {
		if _, err := leaderboard.ParseWindow(string(w)); err != nil {
			return 0, err
		}
	}
	n, err := s.engine.Rebuild(ctx, s.now())
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"window": w, "entries": n}).Info("Кэш рейтинга пересобран вручную")
	return n, nil
}

// ResetWeekly закрывает прошедшую неделю: пересобирает её окончательно,
// открывает новую и объявляет победителей.
func (s *Scheduler) ResetWeekly(ctx context.Context) error {
	current := common.WeekStart(s.now())
	finished := current.AddDate(0, 0, -7)

	if _, err := s.engine.Rebuild(ctx, finished); err != nil {
		return err
	}
	if _, err := s.engine.Rebuild(ctx, current); err != nil {
		return err
	}

	if !s.settings.Snapshot(ctx).LeaderboardResetWeekly {
		return nil
	}
	title := fmt.Sprintf("Итоги недели %s – %s",
		finished.Format("02.01"), common.WeekEnd(finished).Format("02.01.2006"))
	s.announce(ctx, leaderboard.Weekly, finished, title)
	return nil
}

// ResetMonthly пересобирает текущую неделю и объявляет победителей прошедшего месяца.
func (s *Scheduler) ResetMonthly(ctx context.Context) error {
	if _, err := s.engine.Rebuild(ctx, s.now()); err != nil {
		return err
	}

	if !s.settings.Snapshot(ctx).LeaderboardResetMonthly {
		return nil
	}
	finished := common.MonthStart(s.now()).AddDate(0, -1, 0)
	title := fmt.Sprintf("Итоги месяца %s", finished.Format("01.2006"))
	s.announce(ctx, leaderboard.Monthly, finished, title)
	return nil
}

// Cleanup удаляет недели старше срока хранения.
func (s *Scheduler) Cleanup(ctx context.Context) error {
	_, err := s.engine.Cleanup(ctx, s.retention)
	return err
}

// announce не возвращает ошибку: повтор пересборки из-за упавшего Telegram не нужен.
func (s *Scheduler) announce(ctx context.Context, w leaderboard.Window, periodStart time.Time, title string) {
	winners, err := s.engine.Top(ctx, w, periodStart, winnersCount)
	if err != nil {
		log.WithError(err).WithField("window", w).Error("Ошибка получения победителей")
		return
	}
	if err := s.announcer.AnnounceWinners(ctx, title, winners); err != nil {
		log.WithError(err).WithField("window", w).Error("Ошибка объявления победителей")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
