package models

import "time"

// Claim records that a person intends to buy an item. It is a join record
// owned by neither the item nor the person.
type Claim struct {
	ID          int64     `json:"id" db:"id"`
	ItemID      int64     `json:"item_id" db:"item_id"`
	ClaimedByID int64     `json:"claimed_by_id" db:"claimed_by_id"`
	ClaimedAt   time.Time `json:"claimed_at" db:"claimed_at"`
}

// ClaimAudit is a claim with the claimant identity resolved. It is only
// produced by the admin audit path.
type ClaimAudit struct {
	ItemID        int64     `json:"item_id"`
	ItemTitle     string    `json:"item_title"`
	ClaimantID    int64     `json:"claimant_id"`
	ClaimantName  string    `json:"claimant_name"`
	ClaimedAt     time.Time `json:"claimed_at"`
	ClaimantState string    `json:"claimant_state"`
}
