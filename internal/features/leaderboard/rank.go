package leaderboard

import (
	"fmt"
	"sort"

	"serotonyl.ru/rewards-engine/internal/common"
	"serotonyl.ru/rewards-engine/internal/settings"
)

// less — общий порядок для живого подсчёта и пересборки кэша:
// очки по убыванию, затем отображаемое имя по возрастанию (побайтово, как
// COLLATE "C" в SQL), затем user_id.
func less(a, b Aggregate) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if a.DisplayName != b.DisplayName {
		return a.DisplayName < b.DisplayName
	}
	return a.UserID < b.UserID
}

// SortAndRank упорядочивает участников и раздаёт ранги 1..N без повторов.
// Входной срез не меняется.
func SortAndRank(rows []Aggregate) []Participant {
	sorted := make([]Aggregate, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })

	out := make([]Participant, len(sorted))
	for i, a := range sorted {
		out[i] = Participant{
			UserID:              a.UserID,
			DisplayName:         a.DisplayName,
			FullName:            a.FullName,
			AvatarURL:           a.AvatarURL,
			Rank:                i + 1,
			Score:               a.Points,
			Credits:             a.Credits,
			ActivitiesCompleted: a.Activities,
			PerfectScores:       a.PerfectScores,
			AveragePercentage:   common.Round1(a.AveragePercentage),
		}
	}
	return out
}

// RankOf — ранг участника или 0, если его нет.
func RankOf(ranked []Participant, userID int64) int {
	if userID == 0 {
		return 0
	}
	for _, p := range ranked {
		if p.UserID == userID {
			return p.Rank
		}
	}
	return 0
}

// Page вырезает страницу. Возвращает копию, чтобы приватность не портила общий срез.
func Page(ranked []Participant, limit, offset int) []Participant {
	if offset >= len(ranked) {
		return []Participant{}
	}
	end := min(offset+limit, len(ranked))
	page := make([]Participant, end-offset)
	copy(page, ranked[offset:end])
	return page
}

// NormalizeLimit проверяет limit/offset и ограничивает limit настройкой max_entries.
func NormalizeLimit(limit, offset, maxEntries int) (int, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return 0, fmt.Errorf("limit=%d: %w", limit, common.ErrInvalidPagination)
	}
	if offset < 0 {
		return 0, fmt.Errorf("offset=%d: %w", offset, common.ErrInvalidPagination)
	}
	if maxEntries > 0 && limit > maxEntries {
		limit = maxEntries
	}
	return limit, nil
}

// ApplyPrivacy прячет личные данные. Порядок и ранги не меняются.
func ApplyPrivacy(page []Participant, snap settings.Snapshot) {
	for i := range page {
		p := &page[i]
		switch {
		case snap.LeaderboardAnonymousMode:
			p.DisplayName = fmt.Sprintf("Player %d", p.Rank)
			p.FullName = ""
			p.AvatarURL = ""
		case !snap.LeaderboardShowRealNames:
			p.FullName = ""
		}
	}
}
