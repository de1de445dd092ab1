package models

import (
	"strings"
	"time"
)

// Person represents a household member. A person is either a full account
// (email + password credential) or a child profile managed by another person.
type Person struct {
	ID                 int64      `json:"id" db:"id"`
	DisplayName        string     `json:"display_name" db:"display_name"`
	Email              *string    `json:"email,omitempty" db:"email"`
	PasswordHash       *string    `json:"-" db:"password_hash"`
	GiftDeliveryEmail  *string    `json:"gift_delivery_email,omitempty" db:"gift_delivery_email"`
	TelegramID         *int64     `json:"telegram_id,omitempty" db:"telegram_id"`
	IsAdmin            bool       `json:"is_admin" db:"is_admin"`
	IsActive           bool       `json:"is_active" db:"is_active"`
	ArchivedAt         *time.Time `json:"archived_at,omitempty" db:"archived_at"`
	ArchivedByID       *int64     `json:"archived_by_id,omitempty" db:"archived_by_id"`
	ArchivedReason     string     `json:"archived_reason,omitempty" db:"archived_reason"`
	PromotedFromChild  bool       `json:"promoted_from_child" db:"promoted_from_child"`
	PromotedAt         *time.Time `json:"promoted_at,omitempty" db:"promoted_at"`
	PromotedByID       *int64     `json:"promoted_by_id,omitempty" db:"promoted_by_id"`
	ManagedByID        *int64     `json:"managed_by_id,omitempty" db:"managed_by_id"`
	InvitedByID        *int64     `json:"invited_by_id,omitempty" db:"invited_by_id"`
	InviteToken        *string    `json:"-" db:"invite_token"`
	InviteTokenExpires *time.Time `json:"-" db:"invite_token_expires"`
	ResetToken         *string    `json:"-" db:"password_reset_token"`
	ResetTokenExpires  *time.Time `json:"-" db:"password_reset_expires"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// IsChildProfile returns true if the person is managed by another person
func (p *Person) IsChildProfile() bool {
	return p.ManagedByID != nil
}

// IsArchived returns true if the person has been soft-deleted
func (p *Person) IsArchived() bool {
	return !p.IsActive
}

// IsManagedBy returns true if the given person manages this profile
func (p *Person) IsManagedBy(managerID int64) bool {
	return p.ManagedByID != nil && *p.ManagedByID == managerID
}

// HasCredential returns true if a password has been set up
func (p *Person) HasCredential() bool {
	return p.PasswordHash != nil && *p.PasswordHash != ""
}

// DeliveryEmail returns the address gifts should be delivered to, falling
// back to the account email.
func (p *Person) DeliveryEmail() string {
	if p.GiftDeliveryEmail != nil && *p.GiftDeliveryEmail != "" {
		return *p.GiftDeliveryEmail
	}
	if p.Email != nil {
		return *p.Email
	}
	return ""
}

// IdentityString is what an actor must type to confirm a permanent deletion.
func (p *Person) IdentityString() string {
	if p.Email != nil && *p.Email != "" {
		return *p.Email
	}
	return p.DisplayName
}

// CanResetPassword reports whether the person may recover their credential
// by email: active full accounts that already set a password.
func (p *Person) CanResetPassword() bool {
	return p.IsActive && !p.IsChildProfile() && p.Email != nil && p.HasCredential()
}

// ListName returns the default name of the person's wish list
func (p *Person) ListName() string {
	return p.DisplayName + "'s List"
}

// Archive stamps the archive fields
func (p *Person) Archive(byID int64, reason string, at time.Time) {
	p.IsActive = false
	p.ArchivedAt = &at
	p.ArchivedByID = &byID
	p.ArchivedReason = strings.TrimSpace(reason)
}

// Restore clears the archive fields
func (p *Person) Restore() {
	p.IsActive = true
	p.ArchivedAt = nil
	p.ArchivedByID = nil
	p.ArchivedReason = ""
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
