// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: границы календарных периодов в UTC, округление, плюрализация.
//
// Все границы дней, недель и месяцев считаются строго в UTC:
// дневные лимиты, недельный кэш и сбросы планировщика опираются на одни и те же функции.
package common

import (
	"math"
	"time"
)

// DayStart возвращает начало календарного дня (00:00 UTC) для момента t.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekStart возвращает понедельник 00:00 UTC той недели, в которую попадает t.
//
// Примеры:
//
//	WeekStart(вс 2024-03-17 23:59) → пн 2024-03-11 00:00
//	WeekStart(пн 2024-03-18 00:00) → пн 2024-03-18 00:00
func WeekStart(t time.Time) time.Time {
	day := DayStart(t)
	// time.Weekday: воскресенье = 0, поэтому сдвигаем так, чтобы понедельник был 0
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeekEnd возвращает воскресенье той же недели (дата, без времени).
func WeekEnd(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, 6)
}

// MonthStart возвращает первое число месяца 00:00 UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// IsWeekend — суббота или воскресенье по UTC.
func IsWeekend(t time.Time) bool {
	wd := t.UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Round2 округляет до двух знаков после запятой.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round1 округляет до одного знака после запятой.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
