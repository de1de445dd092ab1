package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/GiftboT/internal/mailer"
	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository"
)

// InviteResult is returned by operations that send an invitation after
// their data changes are committed. Warning is set when delivery failed.
type InviteResult struct {
	Person  *models.Person `json:"person"`
	Warning string         `json:"warning,omitempty"`
}

// ProfileUpdate holds the profile fields a person may change. Nil fields are
// left untouched; an empty GiftDeliveryEmail clears it.
type ProfileUpdate struct {
	DisplayName       *string `json:"display_name"`
	GiftDeliveryEmail *string `json:"gift_delivery_email"`
}

// CreateAccount creates a full account with a credential. The actor must be
// an active admin, except for the very first account, which is created as
// an admin when the store is empty.
func (s *Service) CreateAccount(ctx context.Context, actorID int64, in models.NewAccount) (*models.Person, error) {
	in.Email = models.NormalizeEmail(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	var created *models.Person
	err = s.store.WithinTx(ctx, func(r repository.Repositories) error {
		existing, err := r.Persons().List(ctx, repository.PersonFilters{IncludeArchived: true})
		if err != nil {
			return fmt.Errorf("failed to list persons: %w", err)
		}

		var invitedBy *int64
		if len(existing) == 0 {
			in.IsAdmin = true
		} else {
			actor, err := getAdmin(ctx, r, actorID)
			if err != nil {
				return err
			}
			invitedBy = &actor.ID
		}

		created, err = s.createAccount(ctx, r, in, hash, invitedBy)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"person_id": created.ID,
		"actor_id":  actorID,
		"is_admin":  created.IsAdmin,
	}).Info("Account created")
	s.RefreshMetrics(ctx)

	return created, nil
}

// BootstrapAdmin creates an admin account without an acting person. It is
// meant for operators with direct access to the deployment.
func (s *Service) BootstrapAdmin(ctx context.Context, in models.NewAccount) (*models.Person, error) {
	in.Email = models.NormalizeEmail(in.Email)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.IsAdmin = true
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	var created *models.Person
	err = s.store.WithinTx(ctx, func(r repository.Repositories) error {
		created, err = s.createAccount(ctx, r, in, hash, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("person_id", created.ID).Info("Admin account bootstrapped")
	return created, nil
}

func (s *Service) createAccount(ctx context.Context, r repository.Repositories, in models.NewAccount, hash string, invitedBy *int64) (*models.Person, error) {
	if err := ensureEmailFree(ctx, r, in.Email, 0); err != nil {
		return nil, err
	}
	email := in.Email
	return createPersonWithList(ctx, r, &models.Person{
		DisplayName:  in.DisplayName,
		Email:        &email,
		PasswordHash: &hash,
		IsAdmin:      in.IsAdmin,
		InvitedByID:  invitedBy,
	})
}

// InviteAccount creates an account without a credential and sends its owner
// a link to set one. Only admins invite.
func (s *Service) InviteAccount(ctx context.Context, actorID int64, name, email string) (*InviteResult, error) {
	name = strings.TrimSpace(name)
	email = models.NormalizeEmail(email)
	if err := models.ValidateDisplayName(name); err != nil {
		return nil, err
	}
	if err := models.ValidateEmail(email); err != nil {
		return nil, err
	}

	var created *models.Person
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		actor, err := getAdmin(ctx, r, actorID)
		if err != nil {
			return err
		}
		if err := ensureEmailFree(ctx, r, email, 0); err != nil {
			return err
		}

		person := &models.Person{
			DisplayName: name,
			Email:       &email,
			InvitedByID: &actor.ID,
		}
		s.issueInviteToken(person)

		created, err = createPersonWithList(ctx, r, person)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"person_id": created.ID,
		"actor_id":  actorID,
	}).Info("Account invited")
	s.RefreshMetrics(ctx)

	return &InviteResult{Person: created, Warning: s.sendInvitation(ctx, created, false)}, nil
}

// ResendInvitation issues a fresh token to an account that has not set a
// credential yet.
func (s *Service) ResendInvitation(ctx context.Context, actorID, personID int64) (*InviteResult, error) {
	var person *models.Person
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		if _, err := getAdmin(ctx, r, actorID); err != nil {
			return err
		}
		var err error
		person, err = getPerson(ctx, r, personID)
		if err != nil {
			return err
		}
		if person.IsChildProfile() || person.Email == nil {
			return models.ErrNotFound
		}
		if person.HasCredential() {
			return fmt.Errorf("person %d already has a credential: %w", personID, models.ErrInvalidInput)
		}
		if !person.IsActive {
			return models.ErrAlreadyArchived
		}

		s.issueInviteToken(person)
		person, err = r.Persons().Update(ctx, person)
		if err != nil {
			return fmt.Errorf("failed to store invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &InviteResult{Person: person, Warning: s.sendInvitation(ctx, person, person.PromotedFromChild)}, nil
}

// CreateChildProfile creates a managed profile for the given manager. Child
// profiles have neither email nor credential.
func (s *Service) CreateChildProfile(ctx context.Context, managerID int64, name string) (*models.Person, error) {
	name = strings.TrimSpace(name)
	if err := models.ValidateDisplayName(name); err != nil {
		return nil, err
	}

	var created *models.Person
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		manager, err := getActor(ctx, r, managerID)
		if err != nil {
			return err
		}
		if manager.IsChildProfile() {
			return fmt.Errorf("a child profile cannot manage profiles: %w", models.ErrForbidden)
		}

		created, err = createPersonWithList(ctx, r, &models.Person{
			DisplayName: name,
			ManagedByID: &manager.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"person_id":  created.ID,
		"manager_id": managerID,
	}).Info("Child profile created")
	s.RefreshMetrics(ctx)

	return created, nil
}

// CompleteInvitation sets the credential of an invited or promoted account
// and consumes the token.
func (s *Service) CompleteInvitation(ctx context.Context, token, password string) (*models.Person, error) {
	if err := models.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	var person *models.Person
	err = s.store.WithinTx(ctx, func(r repository.Repositories) error {
		person, err = r.Persons().GetByInviteToken(ctx, strings.TrimSpace(token))
		if err != nil {
			return fmt.Errorf("failed to look up invitation: %w", err)
		}
		if person == nil || person.InviteTokenExpires == nil || !s.now().Before(*person.InviteTokenExpires) {
			return models.ErrInvitationExpired
		}
		if !person.IsActive {
			return fmt.Errorf("person %d is archived: %w", person.ID, models.ErrForbidden)
		}

		person.PasswordHash = &hash
		person.InviteToken = nil
		person.InviteTokenExpires = nil
		person, err = r.Persons().Update(ctx, person)
		if err != nil {
			return fmt.Errorf("failed to store credential: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("person_id", person.ID).Info("Invitation completed")
	return person, nil
}

// Authenticate checks an email and password pair. Child profiles, archived
// persons and accounts without a credential never authenticate.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.Person, error) {
	person, err := s.store.Persons().GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to look up person: %w", err)
	}
	if person == nil || !person.IsActive || !person.HasCredential() {
		return nil, models.ErrInvalidCredential
	}
	if !s.hasher.Matches(*person.PasswordHash, password) {
		return nil, models.ErrInvalidCredential
	}
	return person, nil
}

// GetPerson returns a person as seen by viewerID. Archived persons are only
// visible to admins.
func (s *Service) GetPerson(ctx context.Context, viewerID, personID int64) (*models.Person, error) {
	var person *models.Person
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		viewer, err := getActor(ctx, r, viewerID)
		if err != nil {
			return err
		}
		person, err = getPerson(ctx, r, personID)
		if err != nil {
			return err
		}
		if !person.IsActive && !viewer.IsAdmin {
			return fmt.Errorf("person %d: %w", personID, models.ErrNotFound)
		}
		return nil
	})
	return person, err
}

// ListMembers returns the household members. Archived members are included
// only when an admin asks for them.
func (s *Service) ListMembers(ctx context.Context, viewerID int64, includeArchived bool) ([]*models.Person, error) {
	var persons []*models.Person
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		viewer, err := getActor(ctx, r, viewerID)
		if err != nil {
			return err
		}
		persons, err = r.Persons().List(ctx, repository.PersonFilters{
			IncludeArchived: includeArchived && viewer.IsAdmin,
		})
		if err != nil {
			return fmt.Errorf("failed to list persons: %w", err)
		}
		return nil
	})
	return persons, err
}

// UpdateProfile changes a person's display name or gift delivery address.
// The person, their manager or an admin may do this.
func (s *Service) UpdateProfile(ctx context.Context, actorID, personID int64, upd ProfileUpdate) (*models.Person, error) {
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if err := models.ValidateDisplayName(name); err != nil {
			return nil, err
		}
		upd.DisplayName = &name
	}
	if upd.GiftDeliveryEmail != nil && *upd.GiftDeliveryEmail != "" {
		email := models.NormalizeEmail(*upd.GiftDeliveryEmail)
		if err := models.ValidateEmail(email); err != nil {
			return nil, err
		}
		upd.GiftDeliveryEmail = &email
	}

	var person *models.Person
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		actor, err := getActor(ctx, r, actorID)
		if err != nil {
			return err
		}
		person, err = getPerson(ctx, r, personID)
		if err != nil {
			return err
		}
		if !canManage(actor, person) && !actor.IsAdmin {
			return models.ErrForbidden
		}

		if upd.DisplayName != nil {
			person.DisplayName = *upd.DisplayName
		}
		if upd.GiftDeliveryEmail != nil {
			if *upd.GiftDeliveryEmail == "" {
				person.GiftDeliveryEmail = nil
			} else {
				person.GiftDeliveryEmail = upd.GiftDeliveryEmail
			}
		}

		person, err = r.Persons().Update(ctx, person)
		if err != nil {
			return fmt.Errorf("failed to update person: %w", err)
		}
		return nil
	})
	return person, err
}

// ChangePassword replaces the credential after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, personID int64, current, next string) error {
	if err := models.ValidatePassword(next); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}

	return s.store.WithinTx(ctx, func(r repository.Repositories) error {
		person, err := getActor(ctx, r, personID)
		if err != nil {
			return err
		}
		if !person.HasCredential() || !s.hasher.Matches(*person.PasswordHash, current) {
			return models.ErrInvalidCredential
		}
		person.PasswordHash = &hash
		person.ResetToken = nil
		person.ResetTokenExpires = nil
		if _, err := r.Persons().Update(ctx, person); err != nil {
			return fmt.Errorf("failed to update credential: %w", err)
		}
		return nil
	})
}

// LinkTelegram associates a Telegram user with a person.
func (s *Service) LinkTelegram(ctx context.Context, personID, telegramID int64) (*models.Person, error) {
	var person *models.Person
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		var err error
		person, err = getActor(ctx, r, personID)
		if err != nil {
			return err
		}
		person.TelegramID = &telegramID
		person, err = r.Persons().Update(ctx, person)
		if err != nil {
			return fmt.Errorf("failed to link telegram account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"person_id":   personID,
		"telegram_id": telegramID,
	}).Info("Telegram account linked")
	return person, nil
}

// PersonByTelegramID returns the active person linked to a Telegram user.
func (s *Service) PersonByTelegramID(ctx context.Context, telegramID int64) (*models.Person, error) {
	person, err := s.store.Persons().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up telegram user %d: %w", telegramID, err)
	}
	if person == nil || !person.IsActive {
		return nil, fmt.Errorf("telegram user %d: %w", telegramID, models.ErrNotFound)
	}
	return person, nil
}

// ListIDForPerson returns the id of the person's wish list.
func (s *Service) ListIDForPerson(ctx context.Context, personID int64) (int64, error) {
	list, err := s.store.Lists().GetByOwner(ctx, personID)
	if err != nil {
		return 0, fmt.Errorf("failed to load wish list of person %d: %w", personID, err)
	}
	if list == nil {
		return 0, fmt.Errorf("wish list of person %d: %w", personID, models.ErrNotFound)
	}
	return list.ID, nil
}

// ensureEmailFree fails with ErrEmailInUse when another person already uses
// the address. Persons without email never conflict.
func ensureEmailFree(ctx context.Context, r repository.Repositories, email string, selfID int64) error {
	existing, err := r.Persons().GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil && existing.ID != selfID {
		return models.ErrEmailInUse
	}
	return nil
}

func (s *Service) issueInviteToken(person *models.Person) {
	token := uuid.NewString()
	expires := s.now().Add(s.inviteTTL)
	person.InviteToken = &token
	person.InviteTokenExpires = &expires
}

// sendInvitation delivers the invitation and returns a warning instead of
// an error: the data changes that preceded it are already committed.
func (s *Service) sendInvitation(ctx context.Context, person *models.Person, promoted bool) string {
	if person.Email == nil || person.InviteToken == nil || person.InviteTokenExpires == nil {
		return ""
	}

	err := s.mailer.SendInvitation(ctx, mailer.Invitation{
		PersonID:  person.ID,
		Name:      person.DisplayName,
		Email:     *person.Email,
		Token:     *person.InviteToken,
		ExpiresAt: *person.InviteTokenExpires,
		Promoted:  promoted,
	})
	if err == nil {
		return ""
	}

	s.metrics.MailFailure.WithLabelValues("invitation").Inc()
	s.logger.WithFields(logrus.Fields{
		"person_id": person.ID,
	}).WithError(err).Warn("Failed to send invitation")

	if errors.Is(err, context.Canceled) {
		return "invitation not sent: request cancelled"
	}
	return "invitation email could not be sent; resend it later"
}
