// Package rewards — calculator.go содержит чистую функцию расчёта награды.
package rewards

import (
	"fmt"
	"math"
	"strconv"

	"serotonyl.ru/rewards-engine/internal/common"
	"serotonyl.ru/rewards-engine/internal/settings"
)

// Фиксированные параметры, которые не вынесены в настройки
const (
	perfectScoreMultiplier = 1.25
	highAccuracyMultiplier = 1.1
	highAccuracyPercentage = 90
	perfectPercentage      = 100
	streakGrowthPerDay     = 0.02
	maxStreakMultiplier    = 2.0
	defaultSeasonalName    = "Seasonal Event"
	floorEpsilon           = 1e-9
)

// Calculate рассчитывает награду за одно выполнение.
//
// Порядок:
//  1. вердикт anti-gaming «нельзя» → 0 очков и 0 кредитов;
//  2. режим чистого счёта → базовые значения без бонусов;
//  3. бонусная система выключена → базовые значения;
//  4. иначе — стек множителей для очков и только уровень для кредитов,
//     округление вниз и минимум 1 для каждой валюты.
//
// Функция не ходит в БД и не может упасть: все параметры уже в snap.
func Calculate(in Input, snap settings.Snapshot) Result {
	tier := TierFor(in.LifetimePoints, snap.TierThresholds)

	if !in.RewardsAllowed {
		return finish(Result{
			Points:            0,
			Credits:           0,
			Bonuses:           []string{BonusBlocked},
			Multiplier:        0,
			CreditsMultiplier: 0,
			Tier:              tier,
			StreakDays:        in.StreakDays,
			Blocked:           true,
		})
	}

	if snap.PureScoringMode {
		return finish(Result{
			Points:            in.BasePoints,
			Credits:           in.BaseCredits,
			Bonuses:           []string{BonusPureScoring},
			Multiplier:        1.0,
			CreditsMultiplier: 1.0,
			Tier:              tier,
			StreakDays:        in.StreakDays,
		})
	}

	if !snap.RewardsSystemEnabled {
		return finish(Result{
			Points:            in.BasePoints,
			Credits:           in.BaseCredits,
			Bonuses:           []string{},
			Multiplier:        1.0,
			CreditsMultiplier: 1.0,
			Tier:              tier,
			StreakDays:        in.StreakDays,
		})
	}

	var bonuses []string
	pointsMult := 1.0

	// === Очки: все бонусы ===
	tierMult := snap.TierMultipliers.For(string(tier))
	pointsMult *= tierMult
	bonuses = append(bonuses, fmt.Sprintf("%s Tier (Points): %sx", tier.Title(), formatMultiplier(tierMult)))

	if in.CompletionSeconds != nil && *in.CompletionSeconds <= snap.QuickCompletionThreshold {
		pointsMult *= snap.QuickCompletionMultiplier
		bonuses = append(bonuses, fmt.Sprintf("Quick Completion (Points): %sx", formatMultiplier(snap.QuickCompletionMultiplier)))
	}

	if in.StreakDays >= snap.StreakBonusThreshold {
		m := StreakMultiplier(in.StreakDays, snap.StreakBonusMultiplier)
		pointsMult *= m
		bonuses = append(bonuses, fmt.Sprintf("%d Day Streak (Points): %.2fx", in.StreakDays, m))
	}

	if snap.WeekendBonusEnabled && common.IsWeekend(in.CompletedAt) {
		pointsMult *= snap.WeekendBonusMultiplier
		bonuses = append(bonuses, fmt.Sprintf("Weekend Bonus (Points): %sx", formatMultiplier(snap.WeekendBonusMultiplier)))
	}

	if snap.SpecialEventMultiplier > 1.0 {
		pointsMult *= snap.SpecialEventMultiplier
		bonuses = append(bonuses, fmt.Sprintf("Special Event (Points): %sx", formatMultiplier(snap.SpecialEventMultiplier)))
	}

	if snap.SeasonalEventActive {
		name := snap.SeasonalEventName
		if name == "" {
			name = defaultSeasonalName
		}
		pointsMult *= snap.SeasonalEventMultiplier
		bonuses = append(bonuses, fmt.Sprintf("%s (Points): %sx", name, formatMultiplier(snap.SeasonalEventMultiplier)))
	}

	switch {
	case in.Percentage >= perfectPercentage:
		pointsMult *= perfectScoreMultiplier
		bonuses = append(bonuses, fmt.Sprintf("Perfect Score (Points): %sx", formatMultiplier(perfectScoreMultiplier)))
	case in.Percentage >= highAccuracyPercentage:
		pointsMult *= highAccuracyMultiplier
		bonuses = append(bonuses, fmt.Sprintf("High Accuracy (Points): %sx", formatMultiplier(highAccuracyMultiplier)))
	}

	// === Кредиты: только консервативный множитель уровня ===
	creditsMult := snap.CreditTierMultipliers.For(string(tier))
	bonuses = append(bonuses, fmt.Sprintf("%s Tier (Credits): %sx", tier.Title(), formatMultiplier(creditsMult)))

	return finish(Result{
		Points:            applyMultiplier(in.BasePoints, pointsMult),
		Credits:           applyMultiplier(in.BaseCredits, creditsMult),
		Bonuses:           bonuses,
		Multiplier:        common.Round2(pointsMult),
		CreditsMultiplier: common.Round2(creditsMult),
		Tier:              tier,
		StreakDays:        in.StreakDays,
	})
}

// StreakMultiplier — базовый множитель серии, растущий на 2% за день, но не выше 2.0.
func StreakMultiplier(streakDays int, base float64) float64 {
	return math.Min(base*(1+float64(streakDays)*streakGrowthPerDay), maxStreakMultiplier)
}

// applyMultiplier округляет вниз и гарантирует минимум 1.
// floorEpsilon убирает артефакты двоичной арифметики вроде 5.9999999.
func applyMultiplier(base int64, mult float64) int64 {
	v := int64(math.Floor(float64(base)*mult + floorEpsilon))
	if v < 1 {
		return 1
	}
	return v
}

// formatMultiplier печатает множитель так, как его видит пользователь:
// 1 → "1.0", 1.25 → "1.25".
func formatMultiplier(m float64) string {
	if m == math.Trunc(m) {
		return strconv.FormatFloat(m, 'f', 1, 64)
	}
	return strconv.FormatFloat(m, 'f', -1, 64)
}

func finish(r Result) Result {
	r.Message = BuildMessage(r)
	return r
}
