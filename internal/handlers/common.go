package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/service"
)

const notLinkedText = "🔗 Your Telegram account isn't linked yet.\n" +
	"Send `/link your@email.com yourpassword` to me in a private chat."

func send(bot *tgbotapi.BotAPI, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// replyResult sends the friendly text for a domain error. Any other error is
// returned for the router to log.
func replyResult(bot *tgbotapi.BotAPI, chatID int64, err error) error {
	if text, ok := friendlyError(err); ok {
		return send(bot, chatID, text, nil)
	}
	return err
}

// linkedPerson resolves the sender to a person. When the sender is not linked
// it replies with instructions and returns nil.
func linkedPerson(ctx context.Context, svc *service.Service, bot *tgbotapi.BotAPI, message *tgbotapi.Message) (*models.Person, error) {
	person, err := svc.PersonByTelegramID(ctx, message.From.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, send(bot, message.Chat.ID, notLinkedText, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve telegram user: %w", err)
	}
	return person, nil
}

func usage(bot *tgbotapi.BotAPI, chatID int64, text string) error {
	return send(bot, chatID, "❌ "+text, nil)
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func logFields(message *tgbotapi.Message) logrus.Fields {
	return logrus.Fields{
		"chat_id": message.Chat.ID,
		"user_id": message.From.ID,
	}
}
