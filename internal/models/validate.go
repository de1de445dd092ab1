package models

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/shopspring/decimal"
)

// MaxPrice is the largest price the price column (NUMERIC(10,2)) holds.
var MaxPrice = decimal.RequireFromString("99999999.99")

// NewAccount is the input for creating a full account.
type NewAccount struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	IsAdmin     bool   `json:"is_admin"`
}

// Validate checks the account input
func (a NewAccount) Validate() error {
	return invalid(validation.ValidateStruct(&a,
		validation.Field(&a.DisplayName, validation.Required.Error("display name is required"), validation.Length(1, 100)),
		validation.Field(&a.Email, validation.Required.Error("email is required"), is.Email.Error("invalid email format"), validation.Length(3, 120)),
		validation.Field(&a.Password, validation.Required.Error("password is required"), validation.Length(8, 128).Error("password must be 8-128 characters")),
	))
}

// Validate checks the item draft
func (d ItemDraft) Validate() error {
	return invalid(validation.ValidateStruct(&d,
		validation.Field(&d.Title, validation.Required.Error("title is required"), validation.Length(1, 200)),
		validation.Field(&d.URL, validation.Length(0, 2000), is.URL.Error("invalid url")),
		validation.Field(&d.ImageURL, validation.Length(0, 2000), is.URL.Error("invalid image url")),
		validation.Field(&d.MaxClaims, validation.Min(0), validation.Max(UnlimitedClaims)),
		validation.Field(&d.Price, validation.By(checkPrice)),
	))
}

func checkPrice(value any) error {
	price, ok := value.(decimal.NullDecimal)
	if !ok || !price.Valid {
		return nil
	}
	switch {
	case price.Decimal.IsNegative():
		return errors.New("price cannot be negative")
	case price.Decimal.Round(2).GreaterThan(MaxPrice):
		return errors.New("price must not exceed 99999999.99")
	}
	return nil
}

// ValidateEmail checks a single email address
func ValidateEmail(email string) error {
	return invalid(validation.Validate(email, validation.Required.Error("email is required"), is.Email.Error("invalid email format")))
}

// ValidatePassword checks a new credential
func ValidatePassword(password string) error {
	return invalid(validation.Validate(password, validation.Required.Error("password is required"), validation.Length(8, 128).Error("password must be 8-128 characters")))
}

// ValidateDisplayName checks a display name
func ValidateDisplayName(name string) error {
	return invalid(validation.Validate(strings.TrimSpace(name), validation.Required.Error("name is required"), validation.Length(1, 100)))
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}
