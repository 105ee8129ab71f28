package telegram

import (
	"context"
	"fmt"
	"html"
	"strings"

	tele "gopkg.in/telebot.v4"
	"quiz-proctor/internal/domain"
)

// Alerter posts block notices to the admin group. It is an EventJournal
// that ignores every entry other than a block.
type Alerter struct {
	bot    *tele.Bot
	chatID int64
}

// NewAlerter builds an offline bot: it only sends, never polls, and skips
// the getMe round trip at startup. apiURL may be empty for the public
// Bot API.
func NewAlerter(token string, chatID int64, apiURL string) (*Alerter, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		URL:     apiURL,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Alerter{bot: bot, chatID: chatID}, nil
}

func (a *Alerter) Append(_ context.Context, entry domain.JournalEntry) error {
	if entry.Kind != domain.JournalBlocked {
		return nil
	}
	_, err := a.bot.Send(tele.ChatID(a.chatID), formatBlock(entry), &tele.SendOptions{ParseMode: tele.ModeHTML})
	if err != nil {
		return fmt.Errorf("send block alert: %w", err)
	}
	return nil
}

func formatBlock(entry domain.JournalEntry) string {
	var b strings.Builder
	b.WriteString("🚫 <b>Foydalanuvchi bloklandi</b>\n\n")
	fmt.Fprintf(&b, "Telegram ID: <code>%d</code>\n", entry.TelegramID)
	fmt.Fprintf(&b, "Test ID: <code>%d</code>\n", entry.TestID)
	if entry.Attempts > 0 {
		fmt.Fprintf(&b, "Urinishlar: %d\n", entry.Attempts)
	}
	if entry.Detail != "" {
		fmt.Fprintf(&b, "Sabab: %s\n", html.EscapeString(entry.Detail))
	}
	fmt.Fprintf(&b, "Sessiya: <code>%s</code>", html.EscapeString(entry.SessionID))
	return b.String()
}
