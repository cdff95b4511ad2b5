package settings

import (
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Ключи таблицы system_settings
const (
	KeyPureScoringMode      = "pure_scoring_mode"
	KeyRewardsSystemEnabled = "rewards_system_enabled"

	KeyTierThresholdSilver   = "tier_threshold_silver"
	KeyTierThresholdGold     = "tier_threshold_gold"
	KeyTierThresholdPlatinum = "tier_threshold_platinum"

	KeyTierMultiplierPrefix       = "tier_multiplier_"
	KeyCreditTierMultiplierPrefix = "credit_tier_multiplier_"

	KeyQuickCompletionThreshold  = "quick_completion_bonus_threshold"
	KeyQuickCompletionMultiplier = "quick_completion_bonus_multiplier"
	KeyStreakBonusThreshold      = "streak_bonus_threshold"
	KeyStreakBonusMultiplier     = "streak_bonus_multiplier"
	KeyWeekendBonusEnabled       = "weekend_bonus_enabled"
	KeyWeekendBonusMultiplier    = "weekend_bonus_multiplier"
	KeySpecialEventMultiplier    = "special_event_multiplier"
	KeySeasonalEventActive       = "seasonal_event_active"
	KeySeasonalEventName         = "seasonal_event_name"
	KeySeasonalEventMultiplier   = "seasonal_event_multiplier"

	KeyDailyPointsLimit = "daily_points_limit"
	KeyDailyCreditCap   = "daily_credit_cap_quizzes"

	KeyLeaderboardPublicEnabled = "leaderboard_public_enabled"
	KeyLeaderboardShowRealNames = "leaderboard_show_real_names"
	KeyLeaderboardAnonymousMode = "leaderboard_anonymous_mode"
	KeyLeaderboardMaxEntries    = "leaderboard_max_entries"
	KeyLeaderboardResetWeekly   = "leaderboard_reset_weekly"
	KeyLeaderboardResetMonthly  = "leaderboard_reset_monthly"

	KeyAntiGamingRiskThreshold      = "antigaming_risk_threshold"
	KeyAntiGamingMinSeconds         = "antigaming_min_seconds"
	KeyAntiGamingMaxPerfectPerDay   = "antigaming_max_perfect_per_day"
	KeyAntiGamingMaxAttemptsPerHour = "antigaming_max_attempts_per_hour"
)

// FromValues собирает Snapshot из сырых строк.
// Отсутствующий ключ молча получает значение по умолчанию,
// неразборчивый — тоже, но с предупреждением в логе.
func FromValues(values map[string]string) Snapshot {
	d := Defaults()
	p := parser{values: values}

	return Snapshot{
		PureScoringMode:      p.boolean(KeyPureScoringMode, d.PureScoringMode),
		RewardsSystemEnabled: p.boolean(KeyRewardsSystemEnabled, d.RewardsSystemEnabled),

		TierThresholds: TierThresholds{
			Silver:   p.int64(KeyTierThresholdSilver, d.TierThresholds.Silver),
			Gold:     p.int64(KeyTierThresholdGold, d.TierThresholds.Gold),
			Platinum: p.int64(KeyTierThresholdPlatinum, d.TierThresholds.Platinum),
		},
		TierMultipliers:       p.tierTable(KeyTierMultiplierPrefix, d.TierMultipliers),
		CreditTierMultipliers: p.tierTable(KeyCreditTierMultiplierPrefix, d.CreditTierMultipliers),

		QuickCompletionThreshold:  p.integer(KeyQuickCompletionThreshold, d.QuickCompletionThreshold),
		QuickCompletionMultiplier: p.float(KeyQuickCompletionMultiplier, d.QuickCompletionMultiplier),
		StreakBonusThreshold:      p.integer(KeyStreakBonusThreshold, d.StreakBonusThreshold),
		StreakBonusMultiplier:     p.float(KeyStreakBonusMultiplier, d.StreakBonusMultiplier),
		WeekendBonusEnabled:       p.boolean(KeyWeekendBonusEnabled, d.WeekendBonusEnabled),
		WeekendBonusMultiplier:    p.float(KeyWeekendBonusMultiplier, d.WeekendBonusMultiplier),
		SpecialEventMultiplier:    p.float(KeySpecialEventMultiplier, d.SpecialEventMultiplier),
		SeasonalEventActive:       p.boolean(KeySeasonalEventActive, d.SeasonalEventActive),
		SeasonalEventName:         p.str(KeySeasonalEventName, d.SeasonalEventName),
		SeasonalEventMultiplier:   p.float(KeySeasonalEventMultiplier, d.SeasonalEventMultiplier),

		DailyPointsLimit: p.int64(KeyDailyPointsLimit, d.DailyPointsLimit),
		DailyCreditCap:   p.int64(KeyDailyCreditCap, d.DailyCreditCap),

		LeaderboardPublicEnabled: p.boolean(KeyLeaderboardPublicEnabled, d.LeaderboardPublicEnabled),
		LeaderboardShowRealNames: p.boolean(KeyLeaderboardShowRealNames, d.LeaderboardShowRealNames),
		LeaderboardAnonymousMode: p.boolean(KeyLeaderboardAnonymousMode, d.LeaderboardAnonymousMode),
		LeaderboardMaxEntries:    p.integer(KeyLeaderboardMaxEntries, d.LeaderboardMaxEntries),
		LeaderboardResetWeekly:   p.boolean(KeyLeaderboardResetWeekly, d.LeaderboardResetWeekly),
		LeaderboardResetMonthly:  p.boolean(KeyLeaderboardResetMonthly, d.LeaderboardResetMonthly),

		AntiGamingRiskThreshold:      p.float(KeyAntiGamingRiskThreshold, d.AntiGamingRiskThreshold),
		AntiGamingMinSeconds:         p.integer(KeyAntiGamingMinSeconds, d.AntiGamingMinSeconds),
		AntiGamingMaxPerfectPerDay:   p.integer(KeyAntiGamingMaxPerfectPerDay, d.AntiGamingMaxPerfectPerDay),
		AntiGamingMaxAttemptsPerHour: p.integer(KeyAntiGamingMaxAttemptsPerHour, d.AntiGamingMaxAttemptsPerHour),
	}
}

type parser struct {
	values map[string]string
}

func (p parser) raw(key string) (string, bool) {
	v, ok := p.values[key]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (p parser) malformed(key, value string, err error) {
	log.WithFields(log.Fields{
		"key":   key,
		"value": value,
	}).WithError(err).Warn("Некорректное значение настройки, используем значение по умолчанию")
}

func (p parser) str(key, def string) string {
	v, ok := p.raw(key)
	if !ok {
		return def
	}
	return v
}

func (p parser) boolean(key string, def bool) bool {
	v, ok := p.raw(key)
	if !ok || v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	p.malformed(key, v, strconv.ErrSyntax)
	return def
}

func (p parser) float(key string, def float64) float64 {
	v, ok := p.raw(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.malformed(key, v, err)
		return def
	}
	return f
}

func (p parser) integer(key string, def int) int {
	v, ok := p.raw(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.malformed(key, v, err)
		return def
	}
	return n
}

func (p parser) int64(key string, def int64) int64 {
	v, ok := p.raw(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.malformed(key, v, err)
		return def
	}
	return n
}

func (p parser) tierTable(prefix string, def TierTable) TierTable {
	return TierTable{
		Bronze:   p.float(prefix+TierBronze, def.Bronze),
		Silver:   p.float(prefix+TierSilver, def.Silver),
		Gold:     p.float(prefix+TierGold, def.Gold),
		Platinum: p.float(prefix+TierPlatinum, def.Platinum),
	}
}
