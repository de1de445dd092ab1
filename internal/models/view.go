package models

import "github.com/shopspring/decimal"

// ListView is the viewer-specific projection of a wish list. It is the only
// shape in which a list leaves the service.
type ListView struct {
	ListID        int64      `json:"list_id"`
	Name          string     `json:"name"`
	OwnerID       int64      `json:"owner_id"`
	OwnerName     string     `json:"owner_name"`
	ManagedByID   *int64     `json:"managed_by_id,omitempty"`
	ViewerIsOwner bool       `json:"viewer_is_owner"`
	TotalItems    int        `json:"total_items"`
	Items         []ItemView `json:"items"`
}

// ItemView is one item as seen by a particular viewer. Claim is nil in the
// owner's view.
type ItemView struct {
	ID          int64               `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	URL         string              `json:"url,omitempty"`
	Price       decimal.NullDecimal `json:"price"`
	Notes       string              `json:"notes,omitempty"`
	ImageURL    string              `json:"image_url,omitempty"`
	Rank        int                 `json:"rank"`
	MaxClaims   int                 `json:"max_claims"`
	Claim       *ClaimStatus        `json:"claim,omitempty"`
}

// ClaimStatus is all a non-owner ever learns about the claims on an item.
type ClaimStatus struct {
	ClaimedByViewer bool `json:"claimed_by_viewer"`
	FullyClaimed    bool `json:"fully_claimed"`
}
