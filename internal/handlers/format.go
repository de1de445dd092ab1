package handlers

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kerhoff/GiftboT/internal/models"
)

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escape quotes user text for the legacy Markdown parse mode
func escape(text string) string {
	return markdownEscaper.Replace(text)
}

// FormatList renders a list view as a Telegram message. Claim markers are
// only shown on views that carry claim status, which the owner's never does.
func FormatList(view *models.ListView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🎁 *%s*\n", escape(view.Name))
	if !view.ViewerIsOwner {
		fmt.Fprintf(&sb, "_for %s_\n", escape(view.OwnerName))
	}
	sb.WriteString("\n")

	if len(view.Items) == 0 {
		if view.TotalItems > 0 {
			sb.WriteString("Everything on this list is already taken.")
		} else {
			sb.WriteString("No wishes yet.")
		}
		return sb.String()
	}

	for _, item := range view.Items {
		fmt.Fprintf(&sb, "%d. %s", item.Rank, escape(item.Title))
		if item.Price.Valid {
			fmt.Fprintf(&sb, " (%s)", item.Price.Decimal.StringFixed(2))
		}
		if item.MaxClaims > 1 {
			sb.WriteString(" 👥")
		}
		if item.Claim != nil {
			switch {
			case item.Claim.ClaimedByViewer:
				sb.WriteString(" ✅ _yours_")
			case item.Claim.FullyClaimed:
				sb.WriteString(" 🔒 _taken_")
			}
		}
		fmt.Fprintf(&sb, "  `#%d`\n", item.ID)
		if item.URL != "" {
			fmt.Fprintf(&sb, "   %s\n", escape(item.URL))
		}
	}

	if len(view.Items) < view.TotalItems {
		fmt.Fprintf(&sb, "\n_%d of %d items shown_", len(view.Items), view.TotalItems)
	}
	return sb.String()
}

// listKeyboard builds claim/unclaim buttons for a non-owner view. It
// returns nil when there is nothing to press.
func listKeyboard(view *models.ListView) *tgbotapi.InlineKeyboardMarkup {
	if view.ViewerIsOwner {
		return nil
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, item := range view.Items {
		if item.Claim == nil {
			continue
		}
		var button tgbotapi.InlineKeyboardButton
		switch {
		case item.Claim.ClaimedByViewer:
			button = tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("↩️ Unclaim %d. %s", item.Rank, truncate(item.Title, 24)), fmt.Sprintf("unclaim:%d", item.ID))
		case item.Claim.FullyClaimed:
			continue
		default:
			button = tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("🎁 Claim %d. %s", item.Rank, truncate(item.Title, 24)), fmt.Sprintf("claim:%d", item.ID))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button))
	}
	if len(rows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// FormatMembers renders the member directory.
func FormatMembers(members []*models.Person) string {
	if len(members) == 0 {
		return "👥 No members yet."
	}

	var sb strings.Builder
	sb.WriteString("👥 *Members*\n\n")
	for _, p := range members {
		fmt.Fprintf(&sb, "`#%d` %s", p.ID, escape(p.DisplayName))
		if p.IsAdmin {
			sb.WriteString(" ⭐")
		}
		if p.IsChildProfile() {
			sb.WriteString(" 🧒")
		}
		if p.IsArchived() {
			sb.WriteString(" _(archived)_")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatClaims renders the items the viewer has claimed.
func FormatClaims(items []*models.WishItem) string {
	if len(items) == 0 {
		return "🛍 You haven't claimed anything yet."
	}

	var sb strings.Builder
	sb.WriteString("🛍 *Your claims*\n\n")
	for _, item := range items {
		fmt.Fprintf(&sb, "• %s `#%d`\n", escape(item.Title), item.ID)
	}
	return sb.String()
}

// friendlyError turns a domain error into a reply. Infrastructure failures
// return false and are left to the router.
func friendlyError(err error) (string, bool) {
	var deps *models.DependentsError
	if errors.As(err, &deps) {
		names := make([]string, 0, len(deps.Dependents))
		for _, d := range deps.Dependents {
			names = append(names, fmt.Sprintf("%s (#%d)", escape(d.DisplayName), d.ID))
		}
		return "❌ This person still manages: " + strings.Join(names, ", ") + ". Archive, promote or reassign them first.", true
	}

	messages := []struct {
		target error
		text   string
	}{
		{models.ErrSelfClaimForbidden, "🙈 You can't claim items from your own list."},
		{models.ErrAlreadyClaimed, "✅ You've already claimed this item."},
		{models.ErrClaimLimitReached, "🔒 Someone already has this one covered."},
		{models.ErrNoSuchClaim, "❌ You haven't claimed this item."},
		{models.ErrLastAdminProtected, "❌ You can't archive the last active admin."},
		{models.ErrAlreadyArchived, "❌ This person is already archived."},
		{models.ErrNotArchived, "❌ This person is not archived."},
		{models.ErrEmailInUse, "❌ That email address is already in use."},
		{models.ErrNotAChildProfile, "❌ Only child profiles can be promoted."},
		{models.ErrAlreadyPromoted, "❌ This profile has already been promoted."},
		{models.ErrInvalidCredential, "🔑 Email or password is incorrect."},
		{models.ErrManagerArchived, "❌ Restore the managing person first."},
		{models.ErrInvitationExpired, "⌛ That invitation has expired."},
		{models.ErrResetTokenExpired, "⌛ That password reset link has expired."},
		{models.ErrInvalidRank, "❌ That position is outside the list."},
		{models.ErrForbidden, "⛔ You're not allowed to do that."},
		{models.ErrNotFound, "🔍 Not found."},
	}
	for _, m := range messages {
		if errors.Is(err, m.target) {
			return m.text, true
		}
	}
	if errors.Is(err, models.ErrInvalidInput) {
		return "❌ " + escape(strings.TrimPrefix(err.Error(), models.ErrInvalidInput.Error()+": ")), true
	}
	return "", false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
