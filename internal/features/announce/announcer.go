// Package announce публикует победителей недели и месяца в Telegram-чат.
// Без TELEGRAM_BOT_TOKEN используется Noop: итоги только пишутся в лог.
package announce

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/rewards-engine/internal/common"
	"serotonyl.ru/rewards-engine/internal/features/leaderboard"
)

// Announcer публикует итоги периода.
type Announcer interface {
	AnnounceWinners(ctx context.Context, title string, winners []leaderboard.Participant) error
}

// Noop только логирует итоги.
type Noop struct{}

// AnnounceWinners пишет итоги в лог.
func (Noop) AnnounceWinners(ctx context.Context, title string, winners []leaderboard.Participant) error {
	log.WithFields(log.Fields{
		"title":   title,
		"winners": len(winners),
	}).Info("Итоги периода (объявления в Telegram выключены)")
	return nil
}

// Telegram отправляет итоги в чат через Bot API.
type Telegram struct {
	bot    *telego.Bot
	chatID int64
}

// NewTelegram создаёт бота. Токен проверяется по формату сразу.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram-бота: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// AnnounceWinners отправляет сообщение с тройкой лидеров.
func (t *Telegram) AnnounceWinners(ctx context.Context, title string, winners []leaderboard.Participant) error {
	text := FormatWinners(title, winners)
	_, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(t.chatID), text).WithParseMode(telego.ModeHTML))
	if err != nil {
		return fmt.Errorf("ошибка отправки итогов в чат %d: %w", t.chatID, err)
	}
	log.WithFields(log.Fields{
		"chat_id": t.chatID,
		"title":   title,
	}).Info("Итоги периода отправлены в Telegram")
	return nil
}

var medals = []string{"🥇", "🥈", "🥉"}

// FormatWinners собирает HTML-текст объявления.
func FormatWinners(title string, winners []leaderboard.Participant) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 <b>%s</b>\n\n", html.EscapeString(title))

	if len(winners) == 0 {
		sb.WriteString("В этом периоде никто не набрал очков.")
		return sb.String()
	}

	for i, w := range winners {
		prefix := fmt.Sprintf("%d.", w.Rank)
		if i < len(medals) {
			prefix = medals[i]
		}
		fmt.Fprintf(&sb, "%s %s — %s (%d %s)\n",
			prefix,
			html.EscapeString(w.DisplayName),
			common.FormatPoints(w.Score),
			w.ActivitiesCompleted,
			common.PluralizeActivities(w.ActivitiesCompleted),
		)
	}
	return strings.TrimRight(sb.String(), "\n")
}
