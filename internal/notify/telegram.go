package notify

import (
	"context"
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"classbot/internal/config"
	logx "classbot/pkg/logx"
)

// Telegram pushes outcome messages to each user's chat. Send-only: the
// bot never polls for updates.
type Telegram struct {
	bot *tele.Bot
	log logx.Logger
}

// NewTelegram builds the telegram channel, or (nil, nil) when disabled.
func NewTelegram(cfg config.TelegramConfig, log logx.Logger) (*Telegram, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Token == "" {
		return nil, errors.New("notify.telegram: token is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("notify.telegram: %w", err)
	}
	return &Telegram{bot: b, log: log}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, user config.User, msg Message) error {
	_ = ctx
	if user.TelegramChatID == 0 {
		return nil
	}
	text := msg.Subject + "\n\n" + msg.Body
	if _, err := t.bot.Send(tele.ChatID(user.TelegramChatID), text); err != nil {
		return fmt.Errorf("send telegram: %w", err)
	}
	t.log.Debug("telegram sent", logx.Int64("chat_id", user.TelegramChatID))
	return nil
}
