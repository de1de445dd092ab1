// Package memory provides an in-memory implementation of the repository
// store used for tests and ephemeral environments. Transactions run against
// a cloned state under a single mutex and replace the committed state only
// when they succeed.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository"
)

// Ensure Store implements repository.Store
var _ repository.Store = (*Store)(nil)

type claimKey struct {
	itemID   int64
	personID int64
}

type state struct {
	persons map[int64]models.Person
	lists   map[int64]models.WishList
	items   map[int64]models.WishItem
	claims  map[claimKey]models.Claim

	nextPersonID int64
	nextListID   int64
	nextItemID   int64
	nextClaimID  int64
}

func newState() *state {
	return &state{
		persons: make(map[int64]models.Person),
		lists:   make(map[int64]models.WishList),
		items:   make(map[int64]models.WishItem),
		claims:  make(map[claimKey]models.Claim),
	}
}

func (s *state) clone() *state {
	c := &state{
		persons:      make(map[int64]models.Person, len(s.persons)),
		lists:        make(map[int64]models.WishList, len(s.lists)),
		items:        make(map[int64]models.WishItem, len(s.items)),
		claims:       make(map[claimKey]models.Claim, len(s.claims)),
		nextPersonID: s.nextPersonID,
		nextListID:   s.nextListID,
		nextItemID:   s.nextItemID,
		nextClaimID:  s.nextClaimID,
	}
	for k, v := range s.persons {
		c.persons[k] = clonePerson(v)
	}
	for k, v := range s.lists {
		v.Items = nil
		c.lists[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.claims {
		c.claims[k] = v
	}
	return c
}

// checkRanks mirrors the deferred (list, rank) uniqueness constraint of the
// SQL schema: it runs once at commit time.
func (s *state) checkRanks() error {
	seen := make(map[[2]int64]int64, len(s.items))
	for id, item := range s.items {
		key := [2]int64{item.WishListID, int64(item.Rank)}
		if other, ok := seen[key]; ok {
			return fmt.Errorf("duplicate rank %d in list %d (items %d and %d)", item.Rank, item.WishListID, other, id)
		}
		seen[key] = id
	}
	return nil
}

// Store is an in-memory repository.Store.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// WithinTx runs fn against a private copy of the state and commits it only
// if fn succeeds. Transactions are fully serialized.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&repos{run: direct(work), now: s.now}); err != nil {
		return err
	}
	if err := work.checkRanks(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.st = work
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func (s *Store) autocommit(fn func(*state) error) error {
	return s.WithinTx(context.Background(), func(r repository.Repositories) error {
		return r.(*repos).run(fn)
	})
}

func (s *Store) Persons() repository.PersonRepository {
	return personRepo{run: s.autocommit, now: s.now}
}

func (s *Store) Lists() repository.WishListRepository {
	return listRepo{run: s.autocommit, now: s.now}
}

func (s *Store) Items() repository.WishItemRepository {
	return itemRepo{run: s.autocommit, now: s.now}
}

func (s *Store) Claims() repository.ClaimRepository {
	return claimRepo{run: s.autocommit, now: s.now}
}

type runner func(fn func(*state) error) error

func direct(st *state) runner {
	return func(fn func(*state) error) error { return fn(st) }
}

type repos struct {
	run runner
	now func() time.Time
}

func (r *repos) Persons() repository.PersonRepository {
	return personRepo{run: r.run, now: r.now}
}

func (r *repos) Lists() repository.WishListRepository {
	return listRepo{run: r.run, now: r.now}
}

func (r *repos) Items() repository.WishItemRepository {
	return itemRepo{run: r.run, now: r.now}
}

func (r *repos) Claims() repository.ClaimRepository {
	return claimRepo{run: r.run, now: r.now}
}

func clonePerson(p models.Person) models.Person {
	p.Email = cloneString(p.Email)
	p.PasswordHash = cloneString(p.PasswordHash)
	p.GiftDeliveryEmail = cloneString(p.GiftDeliveryEmail)
	p.InviteToken = cloneString(p.InviteToken)
	p.ResetToken = cloneString(p.ResetToken)
	p.TelegramID = cloneInt(p.TelegramID)
	p.ArchivedByID = cloneInt(p.ArchivedByID)
	p.PromotedByID = cloneInt(p.PromotedByID)
	p.ManagedByID = cloneInt(p.ManagedByID)
	p.InvitedByID = cloneInt(p.InvitedByID)
	p.ArchivedAt = cloneTime(p.ArchivedAt)
	p.PromotedAt = cloneTime(p.PromotedAt)
	p.InviteTokenExpires = cloneTime(p.InviteTokenExpires)
	p.ResetTokenExpires = cloneTime(p.ResetTokenExpires)
	return p
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func sortPersons(persons []*models.Person) {
	sort.Slice(persons, func(i, j int) bool { return persons[i].ID < persons[j].ID })
}
