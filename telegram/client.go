// Package telegram реализует чатовый транспорт и обработчики команд
// поверх Telegram Bot API.
package telegram

import (
	"context"

	"github.com/Dosada05/court-booking-bot/services"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client - обёртка над Telegram Bot API, реализующая services.Messenger.
// Markup в RenderedMessage ожидается типа *tgbotapi.InlineKeyboardMarkup.
type Client struct {
	bot *tgbotapi.BotAPI
}

func NewClient(bot *tgbotapi.BotAPI) *Client {
	return &Client{bot: bot}
}

func (c *Client) SendMessage(_ context.Context, chatID int64, msg services.RenderedMessage) (int, error) {
	m := tgbotapi.NewMessage(chatID, msg.Text)
	m.ParseMode = tgbotapi.ModeHTML
	if markup, ok := msg.Markup.(*tgbotapi.InlineKeyboardMarkup); ok && markup != nil {
		m.ReplyMarkup = *markup
	}
	sent, err := c.bot.Send(m)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (c *Client) EditMessage(_ context.Context, chatID int64, messageID int, msg services.RenderedMessage) error {
	var err error
	if markup, ok := msg.Markup.(*tgbotapi.InlineKeyboardMarkup); ok && markup != nil {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, msg.Text, *markup)
		edit.ParseMode = tgbotapi.ModeHTML
		_, err = c.bot.Send(edit)
	} else {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, msg.Text)
		edit.ParseMode = tgbotapi.ModeHTML
		_, err = c.bot.Send(edit)
	}
	return err
}

func (c *Client) PinMessage(_ context.Context, chatID int64, messageID int) error {
	_, err := c.bot.Request(tgbotapi.PinChatMessageConfig{
		ChatID:              chatID,
		MessageID:           messageID,
		DisableNotification: true,
	})
	return err
}

func (c *Client) UnpinMessage(_ context.Context, chatID int64, messageID int) error {
	_, err := c.bot.Request(tgbotapi.UnpinChatMessageConfig{
		ChatID:    chatID,
		MessageID: messageID,
	})
	return err
}

func (c *Client) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	_, err := c.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

// AnswerCallback закрывает "часики" на кнопке; текст показывается
// пользователю во всплывашке.
func (c *Client) AnswerCallback(callbackID, text string) error {
	_, err := c.bot.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}
