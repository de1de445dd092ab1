package models

import (
	"errors"
	"fmt"
	"strings"
)

// Claim errors
var (
	ErrSelfClaimForbidden = errors.New("cannot claim items from your own list")
	ErrAlreadyClaimed     = errors.New("item already claimed by this person")
	ErrClaimLimitReached  = errors.New("item has been claimed by the maximum number of people")
	ErrNoSuchClaim        = errors.New("no claim exists for this item and person")
)

// Lifecycle errors
var (
	ErrHasActiveDependents  = errors.New("person still manages child profiles")
	ErrLastAdminProtected   = errors.New("cannot archive the last active admin")
	ErrAlreadyArchived      = errors.New("person is already archived")
	ErrNotArchived          = errors.New("person is not archived")
	ErrEmailInUse           = errors.New("email already in use")
	ErrNotAChildProfile     = errors.New("person is not a child profile")
	ErrAlreadyPromoted      = errors.New("person has already been promoted")
	ErrInvalidCredential    = errors.New("invalid credential")
	ErrConfirmationMismatch = errors.New("confirmation text does not match")
	ErrManagerArchived      = errors.New("managing person is archived")
	ErrInvitationExpired    = errors.New("invitation is invalid or expired")
	ErrResetTokenExpired    = errors.New("password reset link is invalid or expired")
)

// Generic errors
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidRank  = errors.New("rank out of range")
)

var domainErrors = []error{
	ErrSelfClaimForbidden, ErrAlreadyClaimed, ErrClaimLimitReached, ErrNoSuchClaim,
	ErrHasActiveDependents, ErrLastAdminProtected, ErrAlreadyArchived, ErrNotArchived,
	ErrEmailInUse, ErrNotAChildProfile, ErrAlreadyPromoted, ErrInvalidCredential,
	ErrConfirmationMismatch, ErrManagerArchived, ErrInvitationExpired, ErrResetTokenExpired,
	ErrNotFound, ErrForbidden, ErrInvalidInput, ErrInvalidRank,
}

// IsDomainError reports whether err is a recoverable domain result rather
// than an infrastructure failure.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// DependentsError lists the child profiles blocking a lifecycle transition.
type DependentsError struct {
	Dependents []*Person
}

func (e *DependentsError) Error() string {
	names := make([]string, 0, len(e.Dependents))
	for _, d := range e.Dependents {
		names = append(names, fmt.Sprintf("%s (#%d)", d.DisplayName, d.ID))
	}
	return fmt.Sprintf("%s: %s", ErrHasActiveDependents, strings.Join(names, ", "))
}

func (e *DependentsError) Is(target error) bool {
	return target == ErrHasActiveDependents
}

// DependentIDs returns the ids of the blocking profiles.
func (e *DependentsError) DependentIDs() []int64 {
	ids := make([]int64, 0, len(e.Dependents))
	for _, d := range e.Dependents {
		ids = append(ids, d.ID)
	}
	return ids
}
