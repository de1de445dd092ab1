package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// StartHandler handles the /start command
type StartHandler struct {
	appName string
	logger  *logrus.Logger
}

// NewStartHandler creates a new start command handler
func NewStartHandler(appName string, logger *logrus.Logger) *StartHandler {
	return &StartHandler{
		appName: appName,
		logger:  logger,
	}
}

// Handle processes the /start command
func (h *StartHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	welcomeText := fmt.Sprintf(`
🎁 *Welcome to %s!*

I keep your family's wish lists and make sure nobody buys the same present twice.

*Getting started:*
1. Ask an admin to invite you and finish signing up from the email.
2. Send me `+"`/link your@email.com yourpassword`"+` in a private chat.
3. Add wishes with /wish and browse the family with /members.

Use /help to see every command.
	`, escape(h.appName))

	if err := send(bot, message.Chat.ID, welcomeText, nil); err != nil {
		return fmt.Errorf("failed to send start message: %w", err)
	}

	h.logger.WithFields(logFields(message)).Info("Sent start message")

	return nil
}
