// Package settings — типизированный снимок бизнес-параметров движка наград.
// models.go описывает Snapshot и его значения по умолчанию.
//
// Значения хранятся в таблице system_settings как строки "ключ → значение".
// Снимок загружается целиком за один цикл обновления, поэтому внутри одного
// расчёта все множители и лимиты согласованы между собой.
package settings

import "time"

// Имена уровней (совпадают с rewards.Tier, но пакет settings не зависит от rewards)
const (
	TierBronze   = "bronze"
	TierSilver   = "silver"
	TierGold     = "gold"
	TierPlatinum = "platinum"
)

// TierTable — множитель для каждого уровня.
type TierTable struct {
	Bronze   float64
	Silver   float64
	Gold     float64
	Platinum float64
}

// For возвращает множитель уровня. Неизвестный уровень → 1.0.
func (t TierTable) For(tier string) float64 {
	switch tier {
	case TierBronze:
		return t.Bronze
	case TierSilver:
		return t.Silver
	case TierGold:
		return t.Gold
	case TierPlatinum:
		return t.Platinum
	}
	return 1.0
}

// TierThresholds — сколько очков за всё время нужно для уровня.
type TierThresholds struct {
	Silver   int64
	Gold     int64
	Platinum int64
}

// Snapshot — согласованный набор параметров на момент загрузки.
type Snapshot struct {
	// --- Общие флаги ---
	PureScoringMode      bool
	RewardsSystemEnabled bool

	// --- Уровни ---
	TierThresholds        TierThresholds
	TierMultipliers       TierTable // для очков
	CreditTierMultipliers TierTable // для кредитов (консервативнее)

	// --- Бонусы ---
	QuickCompletionThreshold  int // секунды
	QuickCompletionMultiplier float64
	StreakBonusThreshold      int // дни
	StreakBonusMultiplier     float64
	WeekendBonusEnabled       bool
	WeekendBonusMultiplier    float64
	SpecialEventMultiplier    float64 // > 1.0 означает, что событие идёт
	SeasonalEventActive       bool
	SeasonalEventName         string
	SeasonalEventMultiplier   float64

	// --- Дневные лимиты ---
	DailyPointsLimit int64
	DailyCreditCap   int64

	// --- Рейтинги ---
	LeaderboardPublicEnabled bool
	LeaderboardShowRealNames bool
	LeaderboardAnonymousMode bool
	LeaderboardMaxEntries    int
	LeaderboardResetWeekly   bool
	LeaderboardResetMonthly  bool

	// --- Anti-gaming ---
	AntiGamingRiskThreshold      float64
	AntiGamingMinSeconds         int
	AntiGamingMaxPerfectPerDay   int
	AntiGamingMaxAttemptsPerHour int

	LoadedAt time.Time
}

// Defaults возвращает консервативные значения, которые используются,
// если ключ отсутствует в БД или не парсится.
func Defaults() Snapshot {
	return Snapshot{
		PureScoringMode:      false,
		RewardsSystemEnabled: true,

		TierThresholds: TierThresholds{Silver: 1000, Gold: 5000, Platinum: 10000},
		TierMultipliers: TierTable{
			Bronze: 1.0, Silver: 1.2, Gold: 1.5, Platinum: 2.0,
		},
		CreditTierMultipliers: TierTable{
			Bronze: 1.0, Silver: 1.1, Gold: 1.2, Platinum: 1.3,
		},

		QuickCompletionThreshold:  30,
		QuickCompletionMultiplier: 1.25,
		StreakBonusThreshold:      3,
		StreakBonusMultiplier:     1.1,
		WeekendBonusEnabled:       false,
		WeekendBonusMultiplier:    1.5,
		SpecialEventMultiplier:    1.0,
		SeasonalEventActive:       false,
		SeasonalEventName:         "",
		SeasonalEventMultiplier:   1.8,

		DailyPointsLimit: 500,
		DailyCreditCap:   200,

		LeaderboardPublicEnabled: true,
		LeaderboardShowRealNames: false,
		LeaderboardAnonymousMode: false,
		LeaderboardMaxEntries:    100,
		LeaderboardResetWeekly:   true,
		LeaderboardResetMonthly:  true,

		AntiGamingRiskThreshold:      0.7,
		AntiGamingMinSeconds:         30,
		AntiGamingMaxPerfectPerDay:   5,
		AntiGamingMaxAttemptsPerHour: 10,
	}
}
