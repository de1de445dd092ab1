package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	helpText := `📚 *GiftboT Help*

*Account:*
• /link <email> <password> - Link this Telegram account
• /members - Show the family
• /child <name> - Add a child profile you manage

*Wish Lists:*
• /wish <title> [| url] - Add to your wish list
• /wishlist [member id] [available] - View a wish list
• /move <item id> <up|down|position> - Reorder your list
• /remove <item id> - Remove a wish

*Gifts:*
• /claim <item id> - Claim an item to buy
• /unclaim <item id> - Release your claim
• /myclaims - Items you are buying

*Admins and managers:*
• /archive <member id> [reason] - Archive a member
• /restore <member id> - Restore a member
• /promote <child id> <email> - Give a child their own account

_Add_ ` + "`available`" + ` _to /wishlist to hide items already taken._`

	if err := send(bot, message.Chat.ID, helpText, nil); err != nil {
		return fmt.Errorf("failed to send help message: %w", err)
	}

	h.logger.WithFields(logFields(message)).Info("Sent help message")

	return nil
}
