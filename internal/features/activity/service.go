// Package activity — service.go содержит конвейер начисления.
package activity

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/rewards-engine/internal/common"
	"serotonyl.ru/rewards-engine/internal/features/antigaming"
	"serotonyl.ru/rewards-engine/internal/features/caps"
	"serotonyl.ru/rewards-engine/internal/features/members"
	"serotonyl.ru/rewards-engine/internal/features/rewards"
	"serotonyl.ru/rewards-engine/internal/settings"
)

// LedgerTx — то, что можно делать внутри транзакции начисления.
type LedgerTx interface {
	caps.TotalsReader
	InsertResult(ctx context.Context, res *Result) error
	AddMemberTotals(ctx context.Context, userID, points, credits int64) error
}

// Ledger — журнал выполнений (в приложении это *Repository).
type Ledger interface {
	caps.TotalsReader
	InUserTx(ctx context.Context, userID int64, fn func(ctx context.Context, tx LedgerTx) error) error
}

// Members — участники и их накопленные очки.
type Members interface {
	Ensure(ctx context.Context, p members.Profile) (*members.Member, error)
	LifetimePoints(ctx context.Context, userID int64) (int64, error)
}

// Streaks — текущая серия дней.
type Streaks interface {
	Current(ctx context.Context, userID int64, at time.Time) int
}

// Accumulator — инкрементальное обновление недельного кэша.
type Accumulator interface {
	Accumulate(ctx context.Context, userID int64, at time.Time, points, credits int64, percentage int) error
}

// SnapshotSource — текущие настройки.
type SnapshotSource interface {
	Snapshot(ctx context.Context) settings.Snapshot
}

// Допустимое окно для completed_at от клиента
const (
	maxBackdate   = 24 * time.Hour
	maxClockSkew  = 5 * time.Minute
	maxBaseAmount = 1_000_000
)

// Service проводит выполнение через весь конвейер.
type Service struct {
	ledger   Ledger
	members  Members
	gate     antigaming.Gate
	streaks  Streaks
	cache    Accumulator
	settings SnapshotSource
	now      func() time.Time
}

// NewService создаёт сервис начислений.
func NewService(ledger Ledger, members Members, gate antigaming.Gate, streaks Streaks, cache Accumulator, settings SnapshotSource) *Service {
	return &Service{
		ledger:   ledger,
		members:  members,
		gate:     gate,
		streaks:  streaks,
		cache:    cache,
		settings: settings,
		now:      time.Now,
	}
}

// Complete записывает выполнение и начисляет награду.
//
// Ошибка записи в журнал возвращается вызывающему. Ошибка обновления кэша
// только логируется: следующая пересборка недели всё исправит.
func (s *Service) Complete(ctx context.Context, req CompleteRequest) (*RewardResponse, error) {
	now := s.now().UTC()
	if err := validate(req); err != nil {
		return nil, err
	}
	at, err := completedAt(req, now)
	if err != nil {
		return nil, err
	}

	member, err := s.members.Ensure(ctx, members.Profile{
		UserID:    req.UserID,
		Username:  req.Username,
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка регистрации участника: %w", err)
	}

	verdict, err := s.gate.Evaluate(ctx, antigaming.Attempt{
		UserID:            req.UserID,
		ActivityID:        req.ActivityID,
		Percentage:        req.Percentage,
		CompletionSeconds: req.CompletionSeconds,
		CompletedAt:       at,
		RemoteAddr:        req.RemoteAddr,
	})
	if err != nil {
		log.WithError(err).WithField("user_id", req.UserID).Warn("Проверка anti-gaming не удалась, награда разрешена")
		verdict = antigaming.Verdict{AllowRewards: true}
	}

	snap := s.settings.Snapshot(ctx)
	res := rewards.Calculate(rewards.Input{
		UserID:            req.UserID,
		ActivityID:        req.ActivityID,
		BasePoints:        req.BasePoints,
		BaseCredits:       req.BaseCredits,
		Percentage:        req.Percentage,
		CompletionSeconds: req.CompletionSeconds,
		CompletedAt:       at,
		LifetimePoints:    member.TotalPoints,
		StreakDays:        s.streaks.Current(ctx, req.UserID, at),
		RewardsAllowed:    verdict.AllowRewards,
	}, snap)

	row := &Result{
		UserID:            req.UserID,
		ActivityID:        req.ActivityID,
		Percentage:        req.Percentage,
		CompletionSeconds: req.CompletionSeconds,
		CompletedAt:       at,
		RecordedAt:        now,
		Tier:              string(res.Tier),
		Bonuses:           res.Bonuses,
		RewardsAllowed:    verdict.AllowRewards,
		RiskScore:         verdict.RiskScore,
	}

	err = s.ledger.InUserTx(ctx, req.UserID, func(ctx context.Context, tx LedgerTx) error {
		if !res.Blocked {
			// Лимит считается по текущему дню сервера, а не по completed_at клиента
			outcome, err := caps.Apply(ctx, tx, snap, req.UserID, now, res.Points, res.Credits)
			if err != nil {
				return err
			}
			applyOutcome(&res, outcome)
		}

		row.PointsAwarded = res.Points
		row.CreditsAwarded = res.Credits
		row.WasLimited = res.WasLimited
		if err := tx.InsertResult(ctx, row); err != nil {
			return err
		}
		if res.Points == 0 && res.Credits == 0 {
			return nil
		}
		return tx.AddMemberTotals(ctx, req.UserID, res.Points, res.Credits)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка записи выполнения: %w", err)
	}

	// Выполнение с нулевой наградой из-за лимита тоже попадает в кэш:
	// пересборка недели считает все строки с rewards_allowed.
	if verdict.AllowRewards {
		if err := s.cache.Accumulate(ctx, req.UserID, at, res.Points, res.Credits, req.Percentage); err != nil {
			log.WithError(err).WithField("user_id", req.UserID).Error("Ошибка обновления недельного кэша")
		}
	}

	res.Message = rewards.BuildMessage(res)

	log.WithFields(log.Fields{
		"user_id":     req.UserID,
		"activity_id": req.ActivityID,
		"points":      res.Points,
		"credits":     res.Credits,
		"tier":        res.Tier,
		"limited":     res.WasLimited,
		"rejected":    res.LimitRejected,
		"allowed":     verdict.AllowRewards,
	}).Info("Выполнение записано")

	resp := newResponse(row.ID, res)
	return &resp, nil
}

// Preview считает награду без записи: anti-gaming не вызывается,
// дневные лимиты применяются к уже начисленному за сегодня.
func (s *Service) Preview(ctx context.Context, req CompleteRequest) (*RewardResponse, error) {
	now := s.now().UTC()
	if err := validate(req); err != nil {
		return nil, err
	}
	at, err := completedAt(req, now)
	if err != nil {
		return nil, err
	}

	lifetime, err := s.members.LifetimePoints(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	snap := s.settings.Snapshot(ctx)
	res := rewards.Calculate(rewards.Input{
		UserID:            req.UserID,
		ActivityID:        req.ActivityID,
		BasePoints:        req.BasePoints,
		BaseCredits:       req.BaseCredits,
		Percentage:        req.Percentage,
		CompletionSeconds: req.CompletionSeconds,
		CompletedAt:       at,
		LifetimePoints:    lifetime,
		StreakDays:        s.streaks.Current(ctx, req.UserID, at),
		RewardsAllowed:    true,
	}, snap)

	outcome, err := caps.Apply(ctx, s.ledger, snap, req.UserID, now, res.Points, res.Credits)
	if err != nil {
		return nil, err
	}
	applyOutcome(&res, outcome)
	res.Message = rewards.BuildMessage(res)

	resp := newResponse(0, res)
	return &resp, nil
}

func applyOutcome(res *rewards.Result, outcome caps.Outcome) {
	res.Points = outcome.Points.Awarded
	res.Credits = outcome.Credits.Awarded
	res.WasLimited = outcome.WasLimited()
	res.LimitRejected = outcome.Rejected()
}

// completedAt — время выполнения из запроса (или now). Допускается не
// раньше суток назад и не позже небольшого расхождения часов.
func completedAt(req CompleteRequest, now time.Time) (time.Time, error) {
	if req.CompletedAt == nil || req.CompletedAt.IsZero() {
		return now, nil
	}
	at := req.CompletedAt.UTC()
	if at.Before(now.Add(-maxBackdate)) || at.After(now.Add(maxClockSkew)) {
		return time.Time{}, fmt.Errorf("completed_at=%s: %w", at.Format(time.RFC3339), common.ErrInvalidCompletedAt)
	}
	return at, nil
}

func validate(req CompleteRequest) error {
	if req.UserID <= 0 {
		return common.ErrUserNotFound
	}
	if req.Percentage < 0 || req.Percentage > 100 {
		return common.ErrInvalidPercentage
	}
	if req.BasePoints < 0 || req.BaseCredits < 0 ||
		req.BasePoints > maxBaseAmount || req.BaseCredits > maxBaseAmount {
		return common.ErrInvalidAmount
	}
	if req.CompletionSeconds != nil && *req.CompletionSeconds < 0 {
		return common.ErrInvalidDuration
	}
	return nil
}
