package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMaxClaims is used when an item does not allow multiple claims.
const DefaultMaxClaims = 1

// UnlimitedClaims stands in for "anyone may claim this" items.
const UnlimitedClaims = 999

// WishList is the single wish list owned by a person
type WishList struct {
	ID        int64      `json:"id" db:"id"`
	OwnerID   int64      `json:"owner_id" db:"owner_id"`
	Name      string     `json:"name" db:"name"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	Items     []WishItem `json:"items,omitempty"`
}

// WishItem represents an item in a wish list. Rank is the 1-based priority
// within the list.
type WishItem struct {
	ID          int64               `json:"id" db:"id"`
	WishListID  int64               `json:"wish_list_id" db:"wish_list_id"`
	Title       string              `json:"title" db:"title"`
	Description string              `json:"description" db:"description"`
	URL         string              `json:"url" db:"url"`
	Price       decimal.NullDecimal `json:"price" db:"price"`
	Notes       string              `json:"notes" db:"notes"`
	ImageURL    string              `json:"image_url" db:"image_url"`
	Rank        int                 `json:"rank" db:"rank"`
	MaxClaims   int                 `json:"max_claims" db:"max_claims"`
	CreatedByID int64               `json:"created_by_id" db:"created_by_id"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at" db:"updated_at"`
}

// AllowsMultipleClaims returns true if more than one person may claim the item
func (i *WishItem) AllowsMultipleClaims() bool {
	return i.MaxClaims > 1
}

// ItemDraft carries the editable fields of an item. Rank is never part of a
// draft; it is assigned on creation and changed only by reordering.
type ItemDraft struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	URL         string              `json:"url"`
	Price       decimal.NullDecimal `json:"price"`
	Notes       string              `json:"notes"`
	ImageURL    string              `json:"image_url"`
	MaxClaims   int                 `json:"max_claims"`
}

// Trimmed returns the draft with surrounding whitespace removed from its
// text fields.
func (d ItemDraft) Trimmed() ItemDraft {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.URL = strings.TrimSpace(d.URL)
	d.Notes = strings.TrimSpace(d.Notes)
	d.ImageURL = strings.TrimSpace(d.ImageURL)
	return d
}

// ApplyTo copies the draft onto an item.
func (d ItemDraft) ApplyTo(item *WishItem) {
	item.Title = d.Title
	item.Description = d.Description
	item.URL = d.URL
	item.Price = d.Price
	item.Notes = d.Notes
	item.ImageURL = d.ImageURL
	item.MaxClaims = d.MaxClaims
	if item.MaxClaims == 0 {
		item.MaxClaims = DefaultMaxClaims
	}
}
