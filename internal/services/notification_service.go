package services

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Notifier posts short operational messages (new paid listings, etc.).
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type telegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier connects to the bot API. Without a token or chat it
// returns a notifier that only logs.
func NewTelegramNotifier(token string, chatID int64, log *zap.Logger) Notifier {
	if token == "" || chatID == 0 {
		log.Info("telegram notifications disabled")
		return &logNotifier{log: log}
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Warn("telegram bot init failed, notifications disabled", zap.Error(err))
		return &logNotifier{log: log}
	}
	log.Info("telegram notifications enabled", zap.String("bot", bot.Self.UserName))
	return &telegramNotifier{bot: bot, chatID: chatID}
}

func (n *telegramNotifier) Notify(_ context.Context, text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

type logNotifier struct {
	log *zap.Logger
}

func (n *logNotifier) Notify(_ context.Context, text string) error {
	n.log.Info("notification", zap.String("text", text))
	return nil
}
