// Package visibility projects a wish list into the shape a particular viewer
// is allowed to see.
//
// The owner of a list, and the person managing a child's list, receive the
// items with no claim information at all: no status, no count, nothing that
// differs between a claimed and an unclaimed item. Everyone else learns two
// booleans per item: whether they hold a claim themselves and whether the
// item is fully claimed. Claimant identities never leave this package.
package visibility

import (
	"github.com/Kerhoff/GiftboT/internal/models"
)

// Input is everything needed to render one list.
type Input struct {
	List   *models.WishList
	Owner  *models.Person
	Items  []*models.WishItem
	Claims []*models.Claim
}

// Options narrows the rendered items.
type Options struct {
	// AvailableOnly drops fully claimed items the viewer has not claimed.
	// It has no effect on the owner view.
	AvailableOnly bool
}

// IsOwnerSide reports whether the viewer must get the owner projection.
func IsOwnerSide(owner *models.Person, viewerID int64) bool {
	return owner.ID == viewerID || owner.IsManagedBy(viewerID)
}

// Project renders the list for viewerID.
func Project(in Input, viewerID int64, opts Options) models.ListView {
	ownerSide := IsOwnerSide(in.Owner, viewerID)

	view := models.ListView{
		ListID:        in.List.ID,
		Name:          in.List.Name,
		OwnerID:       in.Owner.ID,
		OwnerName:     in.Owner.DisplayName,
		ManagedByID:   in.Owner.ManagedByID,
		ViewerIsOwner: ownerSide,
		TotalItems:    len(in.Items),
		Items:         make([]models.ItemView, 0, len(in.Items)),
	}

	if ownerSide {
		for _, item := range in.Items {
			view.Items = append(view.Items, itemView(item))
		}
		return view
	}

	counts := make(map[int64]int, len(in.Items))
	mine := make(map[int64]bool)
	for _, c := range in.Claims {
		counts[c.ItemID]++
		if c.ClaimedByID == viewerID {
			mine[c.ItemID] = true
		}
	}

	for _, item := range in.Items {
		status := &models.ClaimStatus{
			ClaimedByViewer: mine[item.ID],
			FullyClaimed:    counts[item.ID] >= item.MaxClaims,
		}
		if opts.AvailableOnly && status.FullyClaimed && !status.ClaimedByViewer {
			continue
		}
		iv := itemView(item)
		iv.Claim = status
		view.Items = append(view.Items, iv)
	}

	return view
}

func itemView(item *models.WishItem) models.ItemView {
	return models.ItemView{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		URL:         item.URL,
		Price:       item.Price,
		Notes:       item.Notes,
		ImageURL:    item.ImageURL,
		Rank:        item.Rank,
		MaxClaims:   item.MaxClaims,
	}
}
