package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Kerhoff/GiftboT/internal/mailer"
	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository"
)

// RequestPasswordReset mails a one-time reset link to an active account that
// already has a credential. Unknown addresses, archived persons and accounts
// still waiting on their invitation get the same nil result and no mail.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = models.NormalizeEmail(email)
	if err := models.ValidateEmail(email); err != nil {
		return err
	}

	var person *models.Person
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		found, err := r.Persons().GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("failed to look up person: %w", err)
		}
		if found == nil || !found.CanResetPassword() {
			return nil
		}

		token := uuid.NewString()
		expires := s.now().Add(s.resetTTL)
		found.ResetToken = &token
		found.ResetTokenExpires = &expires
		person, err = r.Persons().Update(ctx, found)
		if err != nil {
			return fmt.Errorf("failed to store password reset token: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if person == nil {
		s.logger.Debug("Password reset requested for an address without a resettable account")
		return nil
	}

	log := s.logger.WithField("person_id", person.ID)
	log.Info("Password reset requested")

	err = s.mailer.SendPasswordReset(ctx, mailer.PasswordReset{
		PersonID:  person.ID,
		Name:      person.DisplayName,
		Email:     *person.Email,
		Token:     *person.ResetToken,
		ExpiresAt: *person.ResetTokenExpires,
	})
	if err != nil {
		s.metrics.MailFailure.WithLabelValues("password_reset").Inc()
		log.WithError(err).Warn("Failed to send password reset")
	}
	return nil
}

// ResetPassword sets a new credential using a reset token. The token is
// consumed on success.
func (s *Service) ResetPassword(ctx context.Context, token, password string) (*models.Person, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, models.ErrResetTokenExpired
	}
	if err := models.ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	var person *models.Person
	err = s.store.WithinTx(ctx, func(r repository.Repositories) error {
		person, err = r.Persons().GetByResetToken(ctx, token)
		if err != nil {
			return fmt.Errorf("failed to look up password reset: %w", err)
		}
		if person == nil || person.ResetTokenExpires == nil || !s.now().Before(*person.ResetTokenExpires) {
			return models.ErrResetTokenExpired
		}
		// Archived after the request, or never eligible.
		if !person.CanResetPassword() {
			return models.ErrResetTokenExpired
		}

		person.PasswordHash = &hash
		person.ResetToken = nil
		person.ResetTokenExpires = nil
		person, err = r.Persons().Update(ctx, person)
		if err != nil {
			return fmt.Errorf("failed to store credential: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("person_id", person.ID).Info("Password reset completed")
	return person, nil
}
