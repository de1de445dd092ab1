package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/GiftboT/internal/service"
)

// ---------------------------------------------------------------------------
// LinkHandler – /link <email> <password>
// ---------------------------------------------------------------------------

// LinkHandler binds the sender's Telegram account to a person after checking
// their web credentials.
type LinkHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewLinkHandler creates a new LinkHandler.
func NewLinkHandler(svc *service.Service, logger *logrus.Logger) *LinkHandler {
	return &LinkHandler{svc: svc, logger: logger}
}

// Handle processes the /link command.
func (h *LinkHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if !message.Chat.IsPrivate() {
		// The password is already out; at least get it off the group.
		bot.Request(tgbotapi.NewDeleteMessage(message.Chat.ID, message.MessageID))
		return usage(bot, message.Chat.ID, "Please send /link to me in a private chat, and change your password.")
	}
	if len(args) != 2 {
		return usage(bot, message.Chat.ID, "Usage: `/link your@email.com yourpassword`")
	}

	person, err := h.svc.Authenticate(ctx, args[0], args[1])
	if err != nil {
		return replyResult(bot, message.Chat.ID, err)
	}
	if _, err := h.svc.LinkTelegram(ctx, person.ID, message.From.ID); err != nil {
		return replyResult(bot, message.Chat.ID, err)
	}

	bot.Request(tgbotapi.NewDeleteMessage(message.Chat.ID, message.MessageID))

	h.logger.WithFields(logFields(message)).WithField("person_id", person.ID).Info("Telegram account linked")

	return send(bot, message.Chat.ID,
		fmt.Sprintf("🔗 Linked! Hi %s. Try /wishlist or /members.", escape(person.DisplayName)), nil)
}

// ---------------------------------------------------------------------------
// MembersHandler – /members
// ---------------------------------------------------------------------------

// MembersHandler shows the member directory. Admins also see archived members.
type MembersHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewMembersHandler creates a new MembersHandler.
func NewMembersHandler(svc *service.Service, logger *logrus.Logger) *MembersHandler {
	return &MembersHandler{svc: svc, logger: logger}
}

// Handle processes the /members command.
func (h *MembersHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	person, err := linkedPerson(ctx, h.svc, bot, message)
	if err != nil || person == nil {
		return err
	}

	members, err := h.svc.ListMembers(ctx, person.ID, person.IsAdmin)
	if err != nil {
		return replyResult(bot, message.Chat.ID, err)
	}

	return send(bot, message.Chat.ID, FormatMembers(members), nil)
}

// ---------------------------------------------------------------------------
// ChildHandler – /child <name>
// ---------------------------------------------------------------------------

// ChildHandler creates a child profile managed by the sender.
type ChildHandler struct {
	svc    *service.Service
	logger *logrus.Logger
}

// NewChildHandler creates a new ChildHandler.
func NewChildHandler(svc *service.Service, logger *logrus.Logger) *ChildHandler {
	return &ChildHandler{svc: svc, logger: logger}
}

// Handle processes the /child command.
func (h *ChildHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	name := strings.TrimSpace(message.CommandArguments())
	if name == "" {
		return usage(bot, message.Chat.ID, "Usage: `/child Emma`")
	}

	person, err := linkedPerson(ctx, h.svc, bot, message)
	if err != nil || person == nil {
		return err
	}

	child, err := h.svc.CreateChildProfile(ctx, person.ID, name)
	if err != nil {
		return replyResult(bot, message.Chat.ID, err)
	}

	return send(bot, message.Chat.ID,
		fmt.Sprintf("🧒 Created *%s* (`#%d`). You can manage their list from the web app.", escape(child.DisplayName), child.ID), nil)
}

// ---------------------------------------------------------------------------
// LifecycleHandler – /archive, /restore, /promote
// ---------------------------------------------------------------------------

// LifecycleHandler runs one lifecycle transition on a member.
type LifecycleHandler struct {
	svc        *service.Service
	logger     *logrus.Logger
	transition string
}

// NewArchiveHandler creates a handler for /archive <member id> [reason].
func NewArchiveHandler(svc *service.Service, logger *logrus.Logger) *LifecycleHandler {
	return &LifecycleHandler{svc: svc, logger: logger, transition: "archive"}
}

// NewRestoreHandler creates a handler for /restore <member id>.
func NewRestoreHandler(svc *service.Service, logger *logrus.Logger) *LifecycleHandler {
	return &LifecycleHandler{svc: svc, logger: logger, transition: "restore"}
}

// NewPromoteHandler creates a handler for /promote <child id> <email>.
func NewPromoteHandler(svc *service.Service, logger *logrus.Logger) *LifecycleHandler {
	return &LifecycleHandler{svc: svc, logger: logger, transition: "promote"}
}

// Handle processes the lifecycle command.
func (h *LifecycleHandler) Handle(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 || (h.transition == "promote" && len(args) != 2) {
		return usage(bot, message.Chat.ID, h.usage())
	}
	targetID, ok := parseID(args[0])
	if !ok {
		return usage(bot, message.Chat.ID, "Invalid member id.")
	}

	person, err := linkedPerson(ctx, h.svc, bot, message)
	if err != nil || person == nil {
		return err
	}

	var text string
	switch h.transition {
	case "archive":
		reason := strings.Join(args[1:], " ")
		if err = h.svc.ArchiveUser(ctx, targetID, person.ID, reason); err == nil {
			text = fmt.Sprintf("📦 Member #%d archived. Their list is hidden and their claims are kept.", targetID)
		}
	case "restore":
		if err = h.svc.RestoreUser(ctx, targetID, person.ID); err == nil {
			text = fmt.Sprintf("♻️ Member #%d restored.", targetID)
		}
	case "promote":
		var result *service.PromotionResult
		if result, err = h.svc.PromoteChild(ctx, targetID, person.ID, args[1]); err == nil {
			text = fmt.Sprintf("🎓 Member #%d now has their own account. An invitation was sent to %s.", result.PersonID, escape(args[1]))
			if result.Warning != "" {
				text += "\n⚠️ " + escape(result.Warning)
			}
		}
	}
	if err != nil {
		return replyResult(bot, message.Chat.ID, err)
	}

	h.logger.WithFields(logFields(message)).WithFields(logrus.Fields{
		"transition": h.transition,
		"target_id":  targetID,
	}).Info("Lifecycle command completed")

	return send(bot, message.Chat.ID, text, nil)
}

func (h *LifecycleHandler) usage() string {
	switch h.transition {
	case "archive":
		return "Usage: `/archive <member id> [reason]`"
	case "restore":
		return "Usage: `/restore <member id>`"
	default:
		return "Usage: `/promote <child id> <email>`"
	}
}
