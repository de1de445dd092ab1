package telegram

import (
	"context"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Router handles message routing and command parsing
type Router struct {
	logger       *logrus.Logger
	handlers     map[string]CommandHandler
	descriptions map[string]string
	callbacks    map[string]CallbackHandler
}

// CommandHandler defines the interface for command handlers
type CommandHandler interface {
	Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error
}

// CallbackHandler handles inline keyboard presses. It returns the short text
// shown to the user as the callback answer.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, bot *tgbotapi.BotAPI, query *tgbotapi.CallbackQuery, payload string) (string, error)
}

// NewRouter creates a new message router
func NewRouter(logger *logrus.Logger) *Router {
	return &Router{
		logger:       logger,
		handlers:     make(map[string]CommandHandler),
		descriptions: make(map[string]string),
		callbacks:    make(map[string]CallbackHandler),
	}
}

// RegisterCommand registers a command handler
func (r *Router) RegisterCommand(command, description string, handler CommandHandler) {
	r.handlers[command] = handler
	r.descriptions[command] = description
	r.logger.Debugf("Registered command: %s", command)
}

// RegisterCallback registers a callback handler
func (r *Router) RegisterCallback(prefix string, handler CallbackHandler) {
	r.callbacks[prefix] = handler
	r.logger.Debugf("Registered callback: %s", prefix)
}

// Commands returns the registered commands sorted by name.
func (r *Router) Commands() []tgbotapi.BotCommand {
	commands := make([]tgbotapi.BotCommand, 0, len(r.descriptions))
	for name, desc := range r.descriptions {
		commands = append(commands, tgbotapi.BotCommand{Command: name, Description: desc})
	}
	sort.Slice(commands, func(i, j int) bool { return commands[i].Command < commands[j].Command })
	return commands
}

// HandleMessage handles incoming messages
func (r *Router) HandleMessage(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message) {
	// Only process commands from users
	if message.Text == "" || message.From == nil || !message.IsCommand() {
		return
	}

	command := message.Command()
	args := strings.Fields(message.CommandArguments())

	// Arguments are left out: /link carries a password.
	r.logger.WithFields(logrus.Fields{
		"chat_id":    message.Chat.ID,
		"user_id":    message.From.ID,
		"message_id": message.MessageID,
		"command":    command,
	}).Info("Received command")

	// Find and execute handler
	if handler, exists := r.handlers[command]; exists {
		if err := handler.Handle(ctx, bot, message, args); err != nil {
			r.logger.WithFields(logrus.Fields{
				"command": command,
				"chat_id": message.Chat.ID,
				"user_id": message.From.ID,
				"error":   err,
			}).Error("Command handler failed")

			// Send error message to user
			errorMsg := tgbotapi.NewMessage(message.Chat.ID, "❌ An error occurred while processing your command. Please try again.")
			bot.Send(errorMsg)
		}
	} else {
		// Unknown command
		r.logger.WithFields(logrus.Fields{
			"command": command,
			"chat_id": message.Chat.ID,
			"user_id": message.From.ID,
		}).Warn("Unknown command")

		unknownMsg := tgbotapi.NewMessage(message.Chat.ID, "❓ Unknown command. Use /help to see available commands.")
		bot.Send(unknownMsg)
	}
}

// HandleCallbackQuery handles callback queries from inline keyboards
func (r *Router) HandleCallbackQuery(ctx context.Context, bot *tgbotapi.BotAPI, callbackQuery *tgbotapi.CallbackQuery) {
	r.logger.WithFields(logrus.Fields{
		"callback_id": callbackQuery.ID,
		"user_id":     callbackQuery.From.ID,
		"data":        callbackQuery.Data,
	}).Info("Received callback query")

	answer := ""
	prefix, payload, _ := strings.Cut(callbackQuery.Data, ":")
	if handler, exists := r.callbacks[prefix]; exists {
		text, err := handler.HandleCallback(ctx, bot, callbackQuery, payload)
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"prefix":  prefix,
				"user_id": callbackQuery.From.ID,
				"error":   err,
			}).Error("Callback handler failed")
			text = "❌ Something went wrong"
		}
		answer = text
	}

	// Answer the callback query to remove loading state
	bot.Request(tgbotapi.NewCallback(callbackQuery.ID, answer))
}
