package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/service"
)

// ---------------------------------------------------------------------------
// WishAddHandler – /wish <title> [| url]
// ---------------------------------------------------------------------------

// WishAddHandler handles the /wish command to add an item to the sender's
// own wish list. A link after '|' is stored as the item URL and used for the
// preview image.
type WishAddHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewWishAddHandler creates a new WishAddHandler.
func NewWishAddHandler(svc *service.Service, logger *logrus.Logger) *WishAddHandler {
	return &WishAddHandler{svc: svc, logger: logger}
}

// Handle processes the /wish command.
func (h *WishAddHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	draft, ok := parseWish(message.CommandArguments())
	if !ok {
		return usage(bot, message.Chat.ID, "Please provide a wish item.\nUsage: `/wish Lego set | https://shop.example/lego`")
	}

	person, err := linkedPerson(ctx, h.svc, bot, message)
	if err != nil || person == nil {
		return err
	}

	listID, err := h.svc.ListIDForPerson(ctx, person.ID)
	if err != nil {
		return replyResult(bot, message.Chat.ID, err)
	}

	item, err := h.svc.AddItem(ctx, person.ID, listID, draft)
	if err != nil {
		return replyResult(bot, message.Chat.ID, err)
	}

	h.logger.WithFields(logFields(message)).WithField("item_id", item.ID).Info("Wish item added")

	return send(bot, message.Chat.ID,
		fmt.Sprintf("✅ Added *%s* to your wish list at position %d.", escape(item.Title), item.Rank), nil)
}

// parseWish splits "title | url" into a draft.
func parseWish(raw string) (models.ItemDraft, bool) {
	title, link, _ := strings.Cut(raw, "|")
	draft := models.ItemDraft{
		Title:     strings.TrimSpace(title),
		URL:       strings.TrimSpace(link),
		MaxClaims: models.DefaultMaxClaims,
	}
	return draft, draft.Title != ""
}

// ---------------------------------------------------------------------------
// WishListHandler – /wishlist [member id] [available]
// ---------------------------------------------------------------------------

// WishListHandler shows a wish list as the sender is allowed to see it.
type WishListHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewWishListHandler creates a new WishListHandler.
func NewWishListHandler(svc *service.Service, logger *logrus.Logger) *WishListHandler {
	return &WishListHandler{svc: svc, logger: logger}
}

// Handle processes the /wishlist command.
func (h *WishListHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	person, err := linkedPerson(ctx, h.svc, bot, message)
	if err != nil || person == nil {
		return err
	}

	ownerID := person.ID
	var opts service.RenderOptions
	for _, arg := range args {
		if strings.EqualFold(arg, "available") {
			opts.AvailableOnly = true
			continue
		}
		id, ok := parseID(arg)
		if !ok {
			return usage(bot, message.Chat.ID, "Usage: `/wishlist [member id] [available]`")
		}
		ownerID = id
	}

	listID, err := h.svc.ListIDForPerson(ctx, ownerID)
	if err != nil {
		return replyResult(bot, message.Chat.ID, err)
	}

	view, err := h.svc.RenderList(ctx, listID, person.ID, opts)
	if err != nil {
		return replyResult(bot, message.Chat.ID, err)
	}

	h.logger.WithFields(logFields(message)).WithFields(logrus.Fields{
		"list_id": listID,
		"items":   len(view.Items),
	}).Debug("Rendered wish list")

	return send(bot, message.Chat.ID, FormatList(view), listKeyboard(view))
}

// ---------------------------------------------------------------------------
// WishRemoveHandler – /remove <item id>
// ---------------------------------------------------------------------------

// WishRemoveHandler deletes an item. Everyone who had claimed it is told by
// email.
type WishRemoveHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewWishRemoveHandler creates a new WishRemoveHandler.
func NewWishRemoveHandler(svc *service.Service, logger *logrus.Logger) *WishRemoveHandler {
	return &WishRemoveHandler{svc: svc, logger: logger}
}

// Handle processes the /remove command.
func (h *WishRemoveHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return usage(bot, message.Chat.ID, "Usage: `/remove <item id>`")
	}
	itemID, ok := parseID(args[0])
	if !ok {
		return usage(bot, message.Chat.ID, "Invalid item id.")
	}

	person, err := linkedPerson(ctx, h.svc, bot, message)
	if err != nil || person == nil {
		return err
	}

	if err := h.svc.DeleteItem(ctx, person.ID, itemID); err != nil {
		return replyResult(bot, message.Chat.ID, err)
	}

	h.logger.WithFields(logFields(message)).WithField("item_id", itemID).Info("Wish item removed")

	return send(bot, message.Chat.ID, fmt.Sprintf("🗑 Item #%d removed.", itemID), nil)
}

// ---------------------------------------------------------------------------
// MoveHandler – /move <item id> <up|down|position>
// ---------------------------------------------------------------------------

// MoveHandler reorders the sender's own list.
type MoveHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewMoveHandler creates a new MoveHandler.
func NewMoveHandler(svc *service.Service, logger *logrus.Logger) *MoveHandler {
	return &MoveHandler{svc: svc, logger: logger}
}

// Handle processes the /move command.
func (h *MoveHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) != 2 {
		return usage(bot, message.Chat.ID, "Usage: `/move <item id> <up|down|position>`")
	}
	itemID, ok := parseID(args[0])
	if !ok {
		return usage(bot, message.Chat.ID, "Invalid item id.")
	}

	person, err := linkedPerson(ctx, h.svc, bot, message)
	if err != nil || person == nil {
		return err
	}

	switch dir := service.Direction(strings.ToLower(args[1])); dir {
	case service.Up, service.Down:
		err = h.svc.MoveItem(ctx, person.ID, itemID, dir)
	default:
		rank, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			return usage(bot, message.Chat.ID, "Position must be `up`, `down` or a number.")
		}
		var listID int64
		listID, err = h.svc.ListIDForPerson(ctx, person.ID)
		if err == nil {
			err = h.svc.ReorderItem(ctx, person.ID, listID, itemID, rank)
		}
	}
	if err != nil {
		return replyResult(bot, message.Chat.ID, err)
	}

	h.logger.WithFields(logFields(message)).WithField("item_id", itemID).Info("Wish item moved")

	return send(bot, message.Chat.ID, "↕️ List reordered. Use /wishlist to see it.", nil)
}

// ---------------------------------------------------------------------------
// ClaimHandler – /claim <item id>, /unclaim <item id> and the inline buttons
// ---------------------------------------------------------------------------

// ClaimHandler claims or releases an item for the sender. The same handler
// serves the command and the inline keyboard under /wishlist.
type ClaimHandler struct {
	svc     *service.Service
	logger  *logrus.Logger
	release bool
}

// NewClaimHandler creates a handler that claims items.
func NewClaimHandler(svc *service.Service, logger *logrus.Logger) *ClaimHandler {
	return &ClaimHandler{svc: svc, logger: logger}
}

// NewUnclaimHandler creates a handler that releases claims.
func NewUnclaimHandler(svc *service.Service, logger *logrus.Logger) *ClaimHandler {
	return &ClaimHandler{svc: svc, logger: logger, release: true}
}

// Handle processes /claim or /unclaim.
func (h *ClaimHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return usage(bot, message.Chat.ID, fmt.Sprintf("Usage: `/%s <item id>`", message.Command()))
	}
	itemID, ok := parseID(args[0])
	if !ok {
		return usage(bot, message.Chat.ID, "Invalid item id.")
	}

	person, err := linkedPerson(ctx, h.svc, bot, message)
	if err != nil || person == nil {
		return err
	}

	text, err := h.apply(ctx, person.ID, itemID)
	if err != nil {
		return replyResult(bot, message.Chat.ID, err)
	}

	h.logger.WithFields(logFields(message)).WithFields(logrus.Fields{
		"item_id": itemID,
		"release": h.release,
	}).Info("Claim changed")

	return send(bot, message.Chat.ID, text, nil)
}

// HandleCallback processes an inline claim or unclaim button.
func (h *ClaimHandler) HandleCallback(ctx context.Context, bot *tgbotapi.BotAPI, query *tgbotapi.CallbackQuery, payload string) (string, error) {
	itemID, ok := parseID(payload)
	if !ok {
		return "❌ Invalid item", nil
	}

	person, err := h.svc.PersonByTelegramID(ctx, query.From.ID)
	if err != nil {
		if text, ok := friendlyError(err); ok {
			return text, nil
		}
		return "", err
	}

	text, err := h.apply(ctx, person.ID, itemID)
	if err != nil {
		if text, ok := friendlyError(err); ok {
			return text, nil
		}
		return "", err
	}
	return text, nil
}

func (h *ClaimHandler) apply(ctx context.Context, personID, itemID int64) (string, error) {
	if h.release {
		if err := h.svc.Unclaim(ctx, itemID, personID); err != nil {
			return "", err
		}
		return "↩️ Claim released.", nil
	}
	if _, err := h.svc.Claim(ctx, itemID, personID); err != nil {
		return "", err
	}
	return "🎁 Claimed! The owner won't see who is buying it.", nil
}

// ---------------------------------------------------------------------------
// MyClaimsHandler – /myclaims
// ---------------------------------------------------------------------------

// MyClaimsHandler lists the items the sender is buying.
type MyClaimsHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewMyClaimsHandler creates a new MyClaimsHandler.
func NewMyClaimsHandler(svc *service.Service, logger *logrus.Logger) *MyClaimsHandler {
	return &MyClaimsHandler{svc: svc, logger: logger}
}

// Handle processes the /myclaims command.
func (h *MyClaimsHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	person, err := linkedPerson(ctx, h.svc, bot, message)
	if err != nil || person == nil {
		return err
	}

	items, err := h.svc.MyClaims(ctx, person.ID)
	if err != nil {
		return replyResult(bot, message.Chat.ID, err)
	}

	return send(bot, message.Chat.ID, FormatClaims(items), nil)
}
