// Package members хранит участников: отображаемое имя, аватар и накопленные
// за всё время очки и кредиты.
// models.go описывает структуры данных для работы с таблицей members.
package members

import (
	"strconv"
	"time"
)

// Member представляет участника в базе данных.
// Уровень (bronze/silver/...) не хранится: он каждый раз выводится из TotalPoints.
type Member struct {
	ID           int64     `db:"id"`            // Автоинкрементный ID записи в БД
	UserID       int64     `db:"user_id"`       // Внешний ID пользователя (уникальный)
	Username     string    `db:"username"`      // Логин (может быть пустым)
	FullName     string    `db:"full_name"`     // Настоящее имя, показывается только при show_real_names
	AvatarURL    string    `db:"avatar_url"`    // Ссылка на аватар (может быть пустой)
	TotalPoints  int64     `db:"total_points"`  // Очки за всё время
	TotalCredits int64     `db:"total_credits"` // Кредиты за всё время
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Profile — данные профиля, которые клиент присылает вместе с выполнением.
// Пустые поля не затирают уже сохранённые значения.
type Profile struct {
	UserID    int64
	Username  string
	FullName  string
	AvatarURL string
}

// DisplayNameSQL — то же правило, что и DisplayName, для запросов рейтинга.
// Таблица members должна быть доступна под алиасом m.
const DisplayNameSQL = `COALESCE(NULLIF(m.username, ''), NULLIF(m.full_name, ''), 'Player #' || m.user_id::text)`

// DisplayName возвращает отображаемое имя пользователя.
// Если есть логин — возвращает его, иначе полное имя, иначе «Player #id».
func (m *Member) DisplayName() string {
	return DisplayName(m.UserID, m.Username, m.FullName)
}

// DisplayName — правило отображаемого имени без структуры Member.
func DisplayName(userID int64, username, fullName string) string {
	if username != "" {
		return username
	}
	if fullName != "" {
		return fullName
	}
	return "Player #" + strconv.FormatInt(userID, 10)
}
