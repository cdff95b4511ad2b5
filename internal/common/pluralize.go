// Package common — pluralize.go содержит склонение русских числительных
// для текстов анонсов победителей.
package common

import (
	"fmt"
	"math"
)

// pluralize выбирает форму слова по правилам русского языка.
//
//   - n%10==1 И n%100!=11 → one (1, 21, 31, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, ...)
//   - остальное → many (0, 5-20, 25-30, ...)
func pluralize(n int64, one, few, many string) string {
	absN := int64(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizePoints возвращает форму слова «очко» для числа n.
//
// Примеры:
//
//	PluralizePoints(1)  → "очко"
//	PluralizePoints(3)  → "очка"
//	PluralizePoints(11) → "очков"
func PluralizePoints(n int64) string {
	return pluralize(n, "очко", "очка", "очков")
}

// PluralizeActivities возвращает форму слова «задание».
func PluralizeActivities(n int64) string {
	return pluralize(n, "задание", "задания", "заданий")
}

// FormatPoints создаёт строку вида "150 очков".
func FormatPoints(n int64) string {
	return fmt.Sprintf("%d %s", n, PluralizePoints(n))
}
