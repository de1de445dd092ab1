package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/Kerhoff/GiftboT/internal/models"
)

// PersonReader looks up the person whose credential is checked.
type PersonReader interface {
	GetByID(ctx context.Context, id int64) (*models.Person, error)
}

// Hasher hashes and compares passwords with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher creates a hasher with the given bcrypt cost. Costs outside
// bcrypt's range fall back to bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Matches reports whether password matches hash.
func (h *Hasher) Matches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// PasswordVerifier checks a person's credential against the stored hash.
type PasswordVerifier struct {
	persons PersonReader
	hasher  *Hasher
}

// NewPasswordVerifier creates a new password-based verifier.
func NewPasswordVerifier(persons PersonReader, hasher *Hasher) *PasswordVerifier {
	return &PasswordVerifier{
		persons: persons,
		hasher:  hasher,
	}
}

// Verify returns false for unknown persons, archived persons and persons
// without a credential. Only storage failures are returned as errors.
func (v *PasswordVerifier) Verify(ctx context.Context, personID int64, credential string) (bool, error) {
	person, err := v.persons.GetByID(ctx, personID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load person: %w", err)
	}
	if person == nil || !person.IsActive || !person.HasCredential() {
		return false, nil
	}

	return v.hasher.Matches(*person.PasswordHash, credential), nil
}
