package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository"
)

const personColumns = `id, display_name, email, password_hash, gift_delivery_email, telegram_id,
		is_admin, is_active, archived_at, archived_by_id, archived_reason,
		promoted_from_child, promoted_at, promoted_by_id, managed_by_id, invited_by_id,
		invite_token, invite_token_expires, password_reset_token, password_reset_expires,
		created_at, updated_at`

type personRepository struct {
	db dbtx
}

// NewPersonRepository creates a new person repository
func NewPersonRepository(db dbtx) repository.PersonRepository {
	return &personRepository{db: db}
}

func (r *personRepository) Create(ctx context.Context, person *models.Person) (*models.Person, error) {
	query := `
		INSERT INTO persons (display_name, email, password_hash, gift_delivery_email, telegram_id,
			is_admin, is_active, managed_by_id, invited_by_id, invite_token, invite_token_expires,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	person.CreatedAt = now
	person.UpdatedAt = now
	person.IsActive = true

	err := r.db.QueryRowContext(ctx, query,
		person.DisplayName,
		person.Email,
		person.PasswordHash,
		person.GiftDeliveryEmail,
		person.TelegramID,
		person.IsAdmin,
		person.IsActive,
		person.ManagedByID,
		person.InvitedByID,
		person.InviteToken,
		person.InviteTokenExpires,
		person.CreatedAt,
		person.UpdatedAt,
	).Scan(&person.ID, &person.CreatedAt, &person.UpdatedAt)

	if err != nil {
		if mapped := mapError(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to create person: %w", err)
	}

	return person, nil
}

func (r *personRepository) GetByID(ctx context.Context, id int64) (*models.Person, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *personRepository) GetByEmail(ctx context.Context, email string) (*models.Person, error) {
	return r.getOne(ctx, "LOWER(email) = $1", models.NormalizeEmail(email))
}

func (r *personRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.Person, error) {
	return r.getOne(ctx, "telegram_id = $1", telegramID)
}

func (r *personRepository) GetByInviteToken(ctx context.Context, token string) (*models.Person, error) {
	return r.getOne(ctx, "invite_token = $1", token)
}

func (r *personRepository) GetByResetToken(ctx context.Context, token string) (*models.Person, error) {
	return r.getOne(ctx, "password_reset_token = $1", token)
}

func (r *personRepository) List(ctx context.Context, filters repository.PersonFilters) ([]*models.Person, error) {
	var conditions []string
	if !filters.IncludeArchived {
		conditions = append(conditions, "is_active = TRUE")
	}
	if filters.OnlyAdmins {
		conditions = append(conditions, "is_admin = TRUE")
	}
	if filters.OnlyChildren {
		conditions = append(conditions, "managed_by_id IS NOT NULL")
	}

	query := `SELECT ` + personColumns + ` FROM persons`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY id ASC`

	return r.query(ctx, query)
}

func (r *personRepository) ListManagedBy(ctx context.Context, managerID int64, onlyActive bool) ([]*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE managed_by_id = $1`
	if onlyActive {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY id ASC`

	return r.query(ctx, query, managerID)
}

// LockActiveAdmins takes row locks on every active admin. Two concurrent
// archives of different admins therefore serialize on the same rows and the
// second one sees the first one's result.
func (r *personRepository) LockActiveAdmins(ctx context.Context) ([]*models.Person, error) {
	query := `SELECT ` + personColumns + `
		FROM persons
		WHERE is_admin = TRUE AND is_active = TRUE
		ORDER BY id ASC
		FOR UPDATE`

	return r.query(ctx, query)
}

func (r *personRepository) Update(ctx context.Context, person *models.Person) (*models.Person, error) {
	query := `
		UPDATE persons
		SET display_name = $2, email = $3, password_hash = $4, gift_delivery_email = $5,
			telegram_id = $6, is_admin = $7, is_active = $8, archived_at = $9, archived_by_id = $10,
			archived_reason = $11, promoted_from_child = $12, promoted_at = $13, promoted_by_id = $14,
			managed_by_id = $15, invited_by_id = $16, invite_token = $17, invite_token_expires = $18,
			password_reset_token = $19, password_reset_expires = $20, updated_at = $21
		WHERE id = $1
		RETURNING updated_at`

	person.UpdatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		person.ID,
		person.DisplayName,
		person.Email,
		person.PasswordHash,
		person.GiftDeliveryEmail,
		person.TelegramID,
		person.IsAdmin,
		person.IsActive,
		person.ArchivedAt,
		person.ArchivedByID,
		person.ArchivedReason,
		person.PromotedFromChild,
		person.PromotedAt,
		person.PromotedByID,
		person.ManagedByID,
		person.InvitedByID,
		person.InviteToken,
		person.InviteTokenExpires,
		person.ResetToken,
		person.ResetTokenExpires,
		person.UpdatedAt,
	).Scan(&person.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("person with ID %d: %w", person.ID, models.ErrNotFound)
		}
		if mapped := mapError(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to update person: %w", err)
	}

	return person, nil
}

func (r *personRepository) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE persons
		SET invite_token = CASE WHEN invite_token_expires < $1 THEN NULL ELSE invite_token END,
			invite_token_expires = CASE WHEN invite_token_expires < $1 THEN NULL ELSE invite_token_expires END,
			password_reset_token = CASE WHEN password_reset_expires < $1 THEN NULL ELSE password_reset_token END,
			password_reset_expires = CASE WHEN password_reset_expires < $1 THEN NULL ELSE password_reset_expires END,
			updated_at = $1
		WHERE invite_token_expires < $1 OR password_reset_expires < $1`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired tokens: %w", err)
	}
	return result.RowsAffected()
}

func (r *personRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM persons WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if mapped := mapError(err); mapped != err {
			return fmt.Errorf("person %d still manages profiles: %w", id, mapped)
		}
		return fmt.Errorf("failed to delete person: %w", err)
	}

	return rowsAffected(result, "person", id)
}

func (r *personRepository) getOne(ctx context.Context, where string, arg any) (*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE ` + where

	person, err := scanPerson(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get person: %w", err)
	}

	return person, nil
}

func (r *personRepository) query(ctx context.Context, query string, args ...any) ([]*models.Person, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query persons: %w", err)
	}
	defer rows.Close()

	var persons []*models.Person
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		persons = append(persons, person)
	}

	return persons, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (*models.Person, error) {
	p := &models.Person{}
	err := row.Scan(
		&p.ID,
		&p.DisplayName,
		&p.Email,
		&p.PasswordHash,
		&p.GiftDeliveryEmail,
		&p.TelegramID,
		&p.IsAdmin,
		&p.IsActive,
		&p.ArchivedAt,
		&p.ArchivedByID,
		&p.ArchivedReason,
		&p.PromotedFromChild,
		&p.PromotedAt,
		&p.PromotedByID,
		&p.ManagedByID,
		&p.InvitedByID,
		&p.InviteToken,
		&p.InviteTokenExpires,
		&p.ResetToken,
		&p.ResetTokenExpires,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
