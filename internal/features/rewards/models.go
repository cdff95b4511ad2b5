// Package rewards рассчитывает очки и кредиты за выполненное задание.
// models.go описывает входные и выходные структуры калькулятора.
//
// Две валюты:
//   - очки (points) — игровая валюта, получают ВСЕ бонусы и множители;
//   - кредиты (credits) — валюта с реальной ценностью, получают только
//     консервативный множитель уровня.
package rewards

import (
	"strings"
	"time"
)

// Tier — уровень вовлечённости, выводится из очков за всё время.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Title возвращает имя уровня с заглавной буквы: "gold" → "Gold".
func (t Tier) Title() string {
	if t == "" {
		return ""
	}
	s := string(t)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Input — всё, что нужно калькулятору для одного выполнения.
type Input struct {
	UserID            int64
	ActivityID        int64
	BasePoints        int64
	BaseCredits       int64
	Percentage        int       // 0..100
	CompletionSeconds *int      // nil, если длительность неизвестна
	CompletedAt       time.Time // момент выполнения (UTC)
	LifetimePoints    int64     // для вычисления уровня
	StreakDays        int
	RewardsAllowed    bool // вердикт anti-gaming
}

// Result — итог расчёта до применения дневных лимитов.
type Result struct {
	Points            int64
	Credits           int64
	Bonuses           []string
	Multiplier        float64 // множитель очков, округлён до 2 знаков
	CreditsMultiplier float64 // множитель кредитов, округлён до 2 знаков
	Tier              Tier
	StreakDays        int
	Blocked           bool // награда заблокирована anti-gaming
	WasLimited        bool
	LimitRejected     bool // дневной лимит исчерпан по обеим валютам
	Message           string
}

// Подписи особых режимов
const (
	BonusPureScoring = "Pure scoring mode enabled"
	BonusBlocked     = "Rewards blocked by anti-gaming check"
)
