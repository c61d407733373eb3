package notify

import (
	"context"
	"errors"
	"fmt"

	"sparkclean/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

var ErrNoChats = errors.New("no admin chats configured")

// Telegram forwards admin notifications to the configured chats.
type Telegram struct {
	bot     domain.TelegramSender
	chatIDs []int64
	logger  zerolog.Logger
}

// NewBot logs in with the bot token.
func NewBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return bot, nil
}

func NewTelegram(bot domain.TelegramSender, chatIDs []int64, logger *zerolog.Logger) *Telegram {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "telegram").Logger()
	}
	return &Telegram{bot: bot, chatIDs: chatIDs, logger: l}
}

// Notify sends text to every admin chat. It keeps going past a failing chat
// and reports the joined errors.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if len(t.chatIDs) == 0 {
		return ErrNoChats
	}

	var errs []error
	for _, chatID := range t.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.DisableWebPagePreview = true
		if _, err := t.bot.Send(msg); err != nil {
			t.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}
