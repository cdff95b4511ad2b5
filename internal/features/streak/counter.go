// Package streak считает серию дней подряд с хотя бы одним выполненным заданием.
// counter.go — чистая логика подсчёта, без обращения к БД.
package streak

import (
	"sort"
	"time"

	"serotonyl.ru/rewards-engine/internal/common"
)

// WindowDays — насколько далеко назад смотрим при подсчёте серии.
const WindowDays = 30

// Count считает серию по датам выполнений.
//
// Идём назад от today. Дата, равная ожидаемой, продлевает серию.
// Дата на день раньше ожидаемой тоже продлевает её (допускается пропуск
// в один день). Всё остальное обрывает серию.
//
// Примеры (today = 10-е):
//
//	[10, 9, 8]  → 3
//	[9, 8]      → 2 (сегодня ещё не занимался, вчерашняя серия жива)
//	[10, 8, 7]  → 3 (пропуск 9-го допускается)
//	[10, 7]     → 1
func Count(days []time.Time, today time.Time) int {
	today = common.DayStart(today)
	windowStart := today.AddDate(0, 0, -WindowDays)

	// Нормализуем: только уникальные дни внутри окна, по убыванию
	seen := make(map[time.Time]struct{}, len(days))
	normalized := make([]time.Time, 0, len(days))
	for _, d := range days {
		d = common.DayStart(d)
		if d.Before(windowStart) || d.After(today) {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		normalized = append(normalized, d)
	}
	sort.Slice(normalized, func(i, j int) bool { return normalized[i].After(normalized[j]) })

	streak := 0
	current := today
	for _, d := range normalized {
		switch {
		case d.Equal(current):
			streak++
			current = current.AddDate(0, 0, -1)
		case d.Equal(current.AddDate(0, 0, -1)):
			streak++
			current = d.AddDate(0, 0, -1)
		default:
			return streak
		}
	}
	return streak
}
