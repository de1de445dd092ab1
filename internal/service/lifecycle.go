package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository"
)

// PromotionResult is returned by PromoteChild. The promotion is durable even
// when Warning reports that the invitation could not be sent.
type PromotionResult struct {
	PersonID int64  `json:"person_id"`
	Warning  string `json:"warning,omitempty"`
}

// authorizeLifecycle allows active admins, and the manager of a child
// profile for that profile.
func authorizeLifecycle(actor, target *models.Person) error {
	if actor.IsAdmin || target.IsManagedBy(actor.ID) {
		return nil
	}
	return fmt.Errorf("person %d cannot change person %d: %w", actor.ID, target.ID, models.ErrForbidden)
}

// ArchiveUser soft-deletes the target. An admin can only be archived while
// another active admin remains, and a person managing active child profiles
// cannot be archived until those profiles are.
func (s *Service) ArchiveUser(ctx context.Context, targetID, actorID int64, reason string) error {
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		actor, err := getActor(ctx, r, actorID)
		if err != nil {
			return err
		}
		target, err := getPerson(ctx, r, targetID)
		if err != nil {
			return err
		}
		if err := authorizeLifecycle(actor, target); err != nil {
			return err
		}
		if !target.IsActive {
			return models.ErrAlreadyArchived
		}

		if target.IsAdmin {
			admins, err := r.Persons().LockActiveAdmins(ctx)
			if err != nil {
				return fmt.Errorf("failed to lock admins: %w", err)
			}
			others := 0
			for _, a := range admins {
				if a.ID != target.ID {
					others++
				}
			}
			if others == 0 {
				return models.ErrLastAdminProtected
			}
		}

		dependents, err := r.Persons().ListManagedBy(ctx, target.ID, true)
		if err != nil {
			return fmt.Errorf("failed to load dependents: %w", err)
		}
		if len(dependents) > 0 {
			return &models.DependentsError{Dependents: dependents}
		}

		target.Archive(actor.ID, reason, s.now())
		if _, err := r.Persons().Update(ctx, target); err != nil {
			return fmt.Errorf("failed to archive person: %w", err)
		}
		return nil
	})
	s.finishTransition("archive", targetID, actorID, err)
	return err
}

// RestoreUser reverses an archive. A child profile whose manager is still
// archived stays archived.
func (s *Service) RestoreUser(ctx context.Context, targetID, actorID int64) error {
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		actor, err := getActor(ctx, r, actorID)
		if err != nil {
			return err
		}
		target, err := getPerson(ctx, r, targetID)
		if err != nil {
			return err
		}
		if err := authorizeLifecycle(actor, target); err != nil {
			return err
		}
		if target.IsActive {
			return models.ErrNotArchived
		}

		if mp, ok := target.Variant().(models.ManagedProfile); ok {
			manager, err := getPerson(ctx, r, mp.ManagerID())
			if err != nil {
				return err
			}
			if !manager.IsActive {
				return models.ErrManagerArchived
			}
		}

		target.Restore()
		if _, err := r.Persons().Update(ctx, target); err != nil {
			return fmt.Errorf("failed to restore person: %w", err)
		}
		return nil
	})
	s.finishTransition("restore", targetID, actorID, err)
	return err
}

// PromoteChild turns a child profile into an independent account with the
// given email. The person keeps its id, list, items and claims. An
// invitation to set a credential is sent after commit.
func (s *Service) PromoteChild(ctx context.Context, childID, actorID int64, email string) (*PromotionResult, error) {
	email = models.NormalizeEmail(email)
	if err := models.ValidateEmail(email); err != nil {
		return nil, err
	}

	var promoted *models.Person
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		actor, err := getActor(ctx, r, actorID)
		if err != nil {
			return err
		}
		target, err := getPerson(ctx, r, childID)
		if err != nil {
			return err
		}
		if err := authorizeLifecycle(actor, target); err != nil {
			return err
		}

		child, ok := target.Variant().(models.ManagedProfile)
		if !ok {
			if target.PromotedFromChild {
				return models.ErrAlreadyPromoted
			}
			return models.ErrNotAChildProfile
		}
		if !target.IsActive {
			return models.ErrAlreadyArchived
		}
		if err := ensureEmailFree(ctx, r, email, target.ID); err != nil {
			return err
		}

		account := child.Promote(actor.ID, email, s.now())
		promoted = account.Person()
		s.issueInviteToken(promoted)

		if _, err := r.Persons().Update(ctx, promoted); err != nil {
			return fmt.Errorf("failed to promote person: %w", err)
		}
		return nil
	})
	s.finishTransition("promote", childID, actorID, err)
	if err != nil {
		return nil, err
	}

	return &PromotionResult{
		PersonID: promoted.ID,
		Warning:  s.sendInvitation(ctx, promoted, true),
	}, nil
}

// DeleteUser permanently removes an archived person together with their
// list, its items, every claim on those items and every claim the person
// held. The actor must be an admin, re-enter their credential and type the
// target's identity string.
func (s *Service) DeleteUser(ctx context.Context, targetID, actorID int64, credential, confirmation string) error {
	err := s.deleteUser(ctx, targetID, actorID, credential, confirmation)
	s.finishTransition("delete", targetID, actorID, err)
	return err
}

func (s *Service) deleteUser(ctx context.Context, targetID, actorID int64, credential, confirmation string) error {
	target, err := getPerson(ctx, s.store, targetID)
	if err != nil {
		return err
	}
	// Checked before anything else: an active person is never deleted,
	// whatever credential is supplied.
	if target.IsActive {
		return models.ErrNotArchived
	}

	if _, err := getAdmin(ctx, s.store, actorID); err != nil {
		return err
	}
	ok, err := s.verifier.Verify(ctx, actorID, credential)
	if err != nil {
		return fmt.Errorf("failed to verify credential: %w", err)
	}
	if !ok {
		return models.ErrInvalidCredential
	}
	if !confirms(target, confirmation) {
		return models.ErrConfirmationMismatch
	}

	return s.store.WithinTx(ctx, func(r repository.Repositories) error {
		target, err := getPerson(ctx, r, targetID)
		if err != nil {
			return err
		}
		if target.IsActive {
			return models.ErrNotArchived
		}
		if _, err := getAdmin(ctx, r, actorID); err != nil {
			return err
		}

		dependents, err := r.Persons().ListManagedBy(ctx, target.ID, false)
		if err != nil {
			return fmt.Errorf("failed to load dependents: %w", err)
		}
		if len(dependents) > 0 {
			return &models.DependentsError{Dependents: dependents}
		}

		if _, err := r.Claims().DeleteByClaimant(ctx, target.ID); err != nil {
			return fmt.Errorf("failed to delete claims: %w", err)
		}
		list, err := r.Lists().GetByOwner(ctx, target.ID)
		if err != nil {
			return fmt.Errorf("failed to load wish list: %w", err)
		}
		if list != nil {
			items, err := r.Items().ListByList(ctx, list.ID)
			if err != nil {
				return fmt.Errorf("failed to load items: %w", err)
			}
			for _, it := range items {
				if _, err := r.Claims().DeleteByItem(ctx, it.ID); err != nil {
					return fmt.Errorf("failed to delete claims: %w", err)
				}
			}
			if err := r.Lists().Delete(ctx, list.ID); err != nil {
				return err
			}
		}
		return r.Persons().Delete(ctx, target.ID)
	})
}

// confirms compares the typed confirmation with the target's identity
// string. Emails compare case-insensitively.
func confirms(target *models.Person, confirmation string) bool {
	confirmation = strings.TrimSpace(confirmation)
	if target.Email != nil && *target.Email != "" {
		return models.NormalizeEmail(confirmation) == models.NormalizeEmail(*target.Email)
	}
	return confirmation == target.DisplayName
}

func (s *Service) finishTransition(transition string, targetID, actorID int64, err error) {
	s.metrics.Lifecycle.WithLabelValues(transition, resultLabel(err)).Inc()

	entry := s.logger.WithFields(logrus.Fields{
		"transition": transition,
		"target_id":  targetID,
		"actor_id":   actorID,
	})
	if err != nil {
		if models.IsDomainError(err) {
			entry.WithError(err).Info("Lifecycle transition rejected")
		} else {
			entry.WithError(err).Error("Lifecycle transition failed")
		}
		return
	}

	entry.Info("Lifecycle transition completed")
	s.RefreshMetrics(context.Background())
}
