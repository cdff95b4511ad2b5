package rewards

import "serotonyl.ru/rewards-engine/internal/settings"

// TierFor — ступенчатая функция уровня по очкам за всё время.
// Пересчитывается при каждом вызове, в профиле пользователя уровень не хранится.
func TierFor(lifetimePoints int64, th settings.TierThresholds) Tier {
	switch {
	case lifetimePoints >= th.Platinum:
		return TierPlatinum
	case lifetimePoints >= th.Gold:
		return TierGold
	case lifetimePoints >= th.Silver:
		return TierSilver
	default:
		return TierBronze
	}
}

// AllTiers — уровни по возрастанию.
var AllTiers = []Tier{TierBronze, TierSilver, TierGold, TierPlatinum}
