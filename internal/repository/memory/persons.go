package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository"
)

type personRepo struct {
	run runner
	now func() time.Time
}

func (r personRepo) Create(ctx context.Context, person *models.Person) (*models.Person, error) {
	err := r.run(func(st *state) error {
		if err := st.checkPersonUnique(person, 0); err != nil {
			return err
		}
		st.nextPersonID++
		now := r.now()
		person.ID = st.nextPersonID
		person.IsActive = true
		person.CreatedAt = now
		person.UpdatedAt = now
		st.persons[person.ID] = clonePerson(*person)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return person, nil
}

func (r personRepo) GetByID(ctx context.Context, id int64) (*models.Person, error) {
	return r.find(func(p *models.Person) bool { return p.ID == id })
}

func (r personRepo) GetByEmail(ctx context.Context, email string) (*models.Person, error) {
	email = models.NormalizeEmail(email)
	return r.find(func(p *models.Person) bool { return p.Email != nil && *p.Email == email })
}

func (r personRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*models.Person, error) {
	return r.find(func(p *models.Person) bool { return p.TelegramID != nil && *p.TelegramID == telegramID })
}

func (r personRepo) GetByInviteToken(ctx context.Context, token string) (*models.Person, error) {
	return r.find(func(p *models.Person) bool { return p.InviteToken != nil && *p.InviteToken == token })
}

func (r personRepo) GetByResetToken(ctx context.Context, token string) (*models.Person, error) {
	return r.find(func(p *models.Person) bool { return p.ResetToken != nil && *p.ResetToken == token })
}

func (r personRepo) List(ctx context.Context, filters repository.PersonFilters) ([]*models.Person, error) {
	return r.filter(func(p *models.Person) bool {
		if !filters.IncludeArchived && !p.IsActive {
			return false
		}
		if filters.OnlyAdmins && !p.IsAdmin {
			return false
		}
		if filters.OnlyChildren && p.ManagedByID == nil {
			return false
		}
		return true
	})
}

func (r personRepo) ListManagedBy(ctx context.Context, managerID int64, onlyActive bool) ([]*models.Person, error) {
	return r.filter(func(p *models.Person) bool {
		return p.IsManagedBy(managerID) && (!onlyActive || p.IsActive)
	})
}

func (r personRepo) LockActiveAdmins(ctx context.Context) ([]*models.Person, error) {
	return r.filter(func(p *models.Person) bool { return p.IsAdmin && p.IsActive })
}

func (r personRepo) Update(ctx context.Context, person *models.Person) (*models.Person, error) {
	err := r.run(func(st *state) error {
		if _, ok := st.persons[person.ID]; !ok {
			return fmt.Errorf("person with ID %d: %w", person.ID, models.ErrNotFound)
		}
		if err := st.checkPersonUnique(person, person.ID); err != nil {
			return err
		}
		person.UpdatedAt = r.now()
		st.persons[person.ID] = clonePerson(*person)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return person, nil
}

func (r personRepo) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	var cleared int64
	err := r.run(func(st *state) error {
		for id, p := range st.persons {
			changed := false
			if p.InviteTokenExpires != nil && p.InviteTokenExpires.Before(now) {
				p.InviteToken = nil
				p.InviteTokenExpires = nil
				changed = true
			}
			if p.ResetTokenExpires != nil && p.ResetTokenExpires.Before(now) {
				p.ResetToken = nil
				p.ResetTokenExpires = nil
				changed = true
			}
			if changed {
				p.UpdatedAt = now
				st.persons[id] = p
				cleared++
			}
		}
		return nil
	})
	return cleared, err
}

// Delete removes the person and cascades like the SQL schema: the owned list,
// its items, every claim on those items and every claim held by the person.
// Archive, promotion and invitation references from other persons are set to
// NULL. A person still managing profiles cannot be deleted.
func (r personRepo) Delete(ctx context.Context, id int64) error {
	return r.run(func(st *state) error {
		if _, ok := st.persons[id]; !ok {
			return fmt.Errorf("person with ID %d: %w", id, models.ErrNotFound)
		}
		for _, p := range st.persons {
			if p.IsManagedBy(id) {
				return fmt.Errorf("person %d still manages profiles: %w", id, models.ErrHasActiveDependents)
			}
		}
		for listID, l := range st.lists {
			if l.OwnerID == id {
				st.deleteList(listID)
			}
		}
		for key := range st.claims {
			if key.personID == id {
				delete(st.claims, key)
			}
		}
		delete(st.persons, id)
		for pid, p := range st.persons {
			changed := false
			for _, ref := range []**int64{&p.ArchivedByID, &p.PromotedByID, &p.InvitedByID} {
				if *ref != nil && **ref == id {
					*ref = nil
					changed = true
				}
			}
			if changed {
				st.persons[pid] = p
			}
		}
		return nil
	})
}

func (r personRepo) find(match func(*models.Person) bool) (*models.Person, error) {
	var out *models.Person
	err := r.run(func(st *state) error {
		for _, p := range st.persons {
			if match(&p) {
				c := clonePerson(p)
				out = &c
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r personRepo) filter(match func(*models.Person) bool) ([]*models.Person, error) {
	var out []*models.Person
	err := r.run(func(st *state) error {
		for _, p := range st.persons {
			if match(&p) {
				c := clonePerson(p)
				out = append(out, &c)
			}
		}
		return nil
	})
	sortPersons(out)
	return out, err
}

// checkPersonUnique enforces the partial unique indexes on email, telegram id
// and the two token columns. selfID is skipped on updates.
func (st *state) checkPersonUnique(person *models.Person, selfID int64) error {
	for id, p := range st.persons {
		if id == selfID {
			continue
		}
		if person.Email != nil && p.Email != nil && models.NormalizeEmail(*p.Email) == models.NormalizeEmail(*person.Email) {
			return models.ErrEmailInUse
		}
		if person.TelegramID != nil && p.TelegramID != nil && *p.TelegramID == *person.TelegramID {
			return fmt.Errorf("telegram id %d already linked: %w", *person.TelegramID, models.ErrInvalidInput)
		}
		if person.InviteToken != nil && p.InviteToken != nil && *p.InviteToken == *person.InviteToken {
			return fmt.Errorf("duplicate invite token")
		}
		if person.ResetToken != nil && p.ResetToken != nil && *p.ResetToken == *person.ResetToken {
			return fmt.Errorf("duplicate password reset token")
		}
	}
	return nil
}
