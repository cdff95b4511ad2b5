package rewards

import (
	"fmt"
	"strings"
)

// BuildMessage собирает короткий текст для пользователя о начисленной награде.
// Вызывается повторно после применения дневных лимитов (WasLimited,
// LimitRejected). Без начисленных очков про множитель не пишем.
func BuildMessage(r Result) string {
	if r.Blocked {
		return "Rewards withheld: activity flagged for review"
	}

	if r.LimitRejected {
		return "Daily limit reached: no rewards awarded"
	}

	var parts []string

	if r.Multiplier > 1.0 && r.Points > 0 {
		parts = append(parts, fmt.Sprintf("Bonus Applied: %sx multiplier!", formatMultiplier(r.Multiplier)))
	}
	if r.Tier != "" && r.Tier != TierBronze {
		parts = append(parts, fmt.Sprintf("%s Tier Benefits!", r.Tier.Title()))
	}
	if r.StreakDays >= 3 {
		parts = append(parts, fmt.Sprintf("%d Day Streak!", r.StreakDays))
	}
	if r.WasLimited {
		parts = append(parts, "Daily limit reached")
	}

	if len(parts) == 0 {
		return "Rewards earned successfully!"
	}
	return strings.Join(parts, " ")
}
