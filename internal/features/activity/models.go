// Package activity проводит одно выполнение задания через весь конвейер:
// anti-gaming → расчёт награды → дневные лимиты → журнал → суммы участника →
// недельный кэш рейтинга.
// models.go описывает запрос, ответ и строку журнала.
package activity

import (
	"time"

	"serotonyl.ru/rewards-engine/internal/features/rewards"
)

// CompleteRequest — выполнение задания, пришедшее от клиента.
type CompleteRequest struct {
	UserID            int64      `json:"-"` // Берётся из заголовка X-User-ID, не из тела
	ActivityID        int64      `json:"activity_id"`
	BasePoints        int64      `json:"base_points"`
	BaseCredits       int64      `json:"base_credits"`
	Percentage        int        `json:"percentage"`
	CompletionSeconds *int       `json:"completion_seconds,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"` // Пусто — текущее время сервера
	Username          string     `json:"username,omitempty"`
	FullName          string     `json:"full_name,omitempty"`
	AvatarURL         string     `json:"avatar_url,omitempty"`
	RemoteAddr        string     `json:"-"`
}

// RewardResponse — что получил пользователь.
type RewardResponse struct {
	ResultID          int64    `json:"result_id,omitempty"`
	FinalPoints       int64    `json:"final_points"`
	FinalCredits      int64    `json:"final_credits"`
	Bonuses           []string `json:"bonuses"`
	Multiplier        float64  `json:"multiplier"`
	CreditsMultiplier float64  `json:"credits_multiplier"`
	Tier              string   `json:"tier"`
	StreakDays        int      `json:"streak_days"`
	WasLimited        bool     `json:"was_limited"`
	LimitRejected     bool     `json:"limit_rejected"` // Дневной лимит уже исчерпан, ничего не начислено
	RewardsAllowed    bool     `json:"rewards_allowed"`
	Message           string   `json:"message"`
}

// Result — строка журнала activity_results. После вставки не меняется.
type Result struct {
	ID                int64
	UserID            int64
	ActivityID        int64
	Percentage        int
	CompletionSeconds *int
	CompletedAt       time.Time
	RecordedAt        time.Time // Время сервера; по нему считаются дневные лимиты
	PointsAwarded     int64
	CreditsAwarded    int64
	Tier              string
	Bonuses           []string
	WasLimited        bool
	RewardsAllowed    bool
	RiskScore         float64
}

func newResponse(id int64, r rewards.Result) RewardResponse {
	bonuses := r.Bonuses
	if bonuses == nil {
		bonuses = []string{}
	}
	return RewardResponse{
		ResultID:          id,
		FinalPoints:       r.Points,
		FinalCredits:      r.Credits,
		Bonuses:           bonuses,
		Multiplier:        r.Multiplier,
		CreditsMultiplier: r.CreditsMultiplier,
		Tier:              string(r.Tier),
		StreakDays:        r.StreakDays,
		WasLimited:        r.WasLimited,
		LimitRejected:     r.LimitRejected,
		RewardsAllowed:    !r.Blocked,
		Message:           r.Message,
	}
}
