// Package leaderboard отвечает за недельный кэш рейтинга и за ответы на
// запросы рейтинга за неделю, месяц и всё время.
//
// Журнал activity_results — источник правды. Кэш weekly_leaderboard_cache
// только ускоряет недельный рейтинг: Accumulate дописывает суммы после
// каждого выполнения, RebuildWeek пересобирает неделю целиком и единственный
// пишет колонки рангов.
package leaderboard

import (
	"fmt"
	"strings"
	"time"

	"serotonyl.ru/rewards-engine/internal/common"
)

// Window — период рейтинга.
type Window string

const (
	Weekly  Window = "weekly"
	Monthly Window = "monthly"
	AllTime Window = "alltime"
)

// Windows — все поддерживаемые периоды.
var Windows = []Window{Weekly, Monthly, AllTime}

// ParseWindow разбирает период из URL. Принимает также all-time и all_time.
func ParseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly", "week":
		return Weekly, nil
	case "monthly", "month":
		return Monthly, nil
	case "alltime", "all-time", "all_time":
		return AllTime, nil
	}
	return "", fmt.Errorf("%q: %w", s, common.ErrInvalidWindow)
}

// Параметры пагинации
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Query — запрос рейтинга.
type Query struct {
	Window           Window
	Limit            int // 0 — по умолчанию (50)
	Offset           int
	RequestingUserID int64 // 0 — анонимный запрос
}

// Aggregate — суммы одного участника за период, до ранжирования.
type Aggregate struct {
	UserID            int64
	DisplayName       string
	FullName          string
	AvatarURL         string
	Points            int64
	Credits           int64
	Activities        int64
	PerfectScores     int64
	AveragePercentage float64
}

// Participant — строка ответа.
type Participant struct {
	UserID              int64   `json:"user_id"`
	DisplayName         string  `json:"display_name"`
	FullName            string  `json:"full_name,omitempty"`
	AvatarURL           string  `json:"avatar_url,omitempty"`
	Rank                int     `json:"rank"`
	Score               int64   `json:"score"`
	Credits             int64   `json:"credits"`
	ActivitiesCompleted int64   `json:"activities_completed"`
	PerfectScores       int64   `json:"perfect_scores"`
	AveragePercentage   float64 `json:"average_percentage"`
	IsRequestingUser    bool    `json:"is_requesting_user"`
}

// Источник данных ответа
const (
	SourceCache = "cache"
	SourceLive  = "live"
)

// Ranking — ответ на запрос рейтинга.
type Ranking struct {
	Type               Window        `json:"type"`
	PeriodStart        string        `json:"period_start,omitempty"` // YYYY-MM-DD, пусто для alltime
	Participants       []Participant `json:"participants"`
	TotalParticipants  int           `json:"total_participants"`
	RequestingUserRank *int          `json:"requesting_user_rank,omitempty"`
	Source             string        `json:"source"`
}

// UserRanking — позиции одного участника во всех периодах.
// nil — участник не попал в рейтинг этого периода.
type UserRanking struct {
	UserID        int64  `json:"user_id"`
	WeeklyRank    *int   `json:"weekly_rank,omitempty"`
	WeeklyScore   int64  `json:"weekly_score"`
	MonthlyRank   *int   `json:"monthly_rank,omitempty"`
	MonthlyScore  int64  `json:"monthly_score"`
	AllTimeRank   *int   `json:"alltime_rank,omitempty"`
	AllTimeScore  int64  `json:"alltime_score"`
	WeeklyEntries int    `json:"weekly_participants"`
	WeekStart     string `json:"week_start"`
}

// Stats — общая статистика участия.
type Stats struct {
	TotalParticipants  int64      `json:"total_participants"`
	TotalActivities    int64      `json:"total_activities"`
	CurrentWeekEntries int64      `json:"current_week_entries"`
	LastCacheUpdate    *time.Time `json:"last_cache_update,omitempty"`
	WeekStart          string     `json:"week_start"`
}

// Period возвращает границы [from, to) периода, в который попадает now.
// Для AllTime обе границы nil.
func (w Window) Period(now time.Time) (from, to *time.Time) {
	switch w {
	case Weekly:
		start := common.WeekStart(now)
		end := start.AddDate(0, 0, 7)
		return &start, &end
	case Monthly:
		start := common.MonthStart(now)
		end := start.AddDate(0, 1, 0)
		return &start, &end
	}
	return nil, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
