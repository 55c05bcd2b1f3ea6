package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot - цикл получения апдейтов Telegram.
type Bot struct {
	api      *tgbotapi.BotAPI
	handlers *Handlers
	logger   *slog.Logger
}

func NewBot(api *tgbotapi.BotAPI, handlers *Handlers, logger *slog.Logger) *Bot {
	return &Bot{api: api, handlers: handlers, logger: logger}
}

// Run крутит long-polling до отмены контекста. Каждый апдейт
// обрабатывается синхронно: порядок действий одного пользователя
// сохраняется, а таблица блокировок защищает межпользовательские гонки.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("telegram bot started", slog.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			b.handlers.HandleUpdate(ctx, update)
		}
	}
}
