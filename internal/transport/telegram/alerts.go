package telegram

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

const textLimit = 4000

// AlertSender posts operator alerts to a Telegram chat. It never polls for
// updates; the bot token is used for sending only.
type AlertSender struct {
	bot *tele.Bot
}

func NewAlertSender(token string) (*AlertSender, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, err
	}
	return &AlertSender{bot: b}, nil
}

// SendAlert implements logx.AlertSender.
func (a *AlertSender) SendAlert(ctx context.Context, chatID int64, threadID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r := []rune(text); len(r) > textLimit {
		text = string(r[:textLimit-1]) + "…"
	}
	_, err := a.bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{
		ThreadID:              threadID,
		DisableWebPagePreview: true,
	})
	return err
}
