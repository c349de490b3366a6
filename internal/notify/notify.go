// Package notify delivers scan and reconcile summaries to a chat.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxMessageLen is Telegram's limit for one text message
const maxMessageLen = 4096

// Notifier sends a plain-text message
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Noop drops every message
type Noop struct{}

func (Noop) Notify(context.Context, string) error { return nil }

// Telegram posts messages to one chat through a bot
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// NewTelegram authenticates the bot token against the Bot API
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newTelegram(bot, chatID), nil
}

// NewTelegramWithEndpoint is NewTelegram against a custom API endpoint such
// as "http://host/bot%s/%s"
func NewTelegramWithEndpoint(token string, chatID int64, endpoint string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newTelegram(bot, chatID), nil
}

func newTelegram(bot *tgbotapi.BotAPI, chatID int64) *Telegram {
	logger := log.With().Str("component", "notify").Str("bot", bot.Self.UserName).Logger()
	logger.Info().Msg("telegram notifier authorized")
	return &Telegram{bot: bot, chatID: chatID, logger: logger}
}

// Notify sends text, truncated to one message
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if runes := []rune(text); len(runes) > maxMessageLen {
		text = string(runes[:maxMessageLen-1]) + "…"
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error().Err(err).Int64("chat_id", t.chatID).Msg("failed to send message")
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
