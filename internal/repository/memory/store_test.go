package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository"
)

func email(s string) *string { return &s }

func ptrTo[T any](v T) *T { return &v }

func seed(t *testing.T, s *Store, name string) (*models.Person, *models.WishList) {
	t.Helper()
	ctx := context.Background()
	p, err := s.Persons().Create(ctx, &models.Person{DisplayName: name, Email: email(name + "@example.com")})
	require.NoError(t, err)
	l, err := s.Lists().Create(ctx, &models.WishList{OwnerID: p.ID, Name: p.ListName()})
	require.NoError(t, err)
	return p, l
}

func TestWithinTxRollsBack(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(r repository.Repositories) error {
		if _, err := r.Persons().Create(ctx, &models.Person{DisplayName: "Ghost"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	persons, err := s.Persons().List(ctx, repository.PersonFilters{IncludeArchived: true})
	require.NoError(t, err)
	assert.Empty(t, persons)
}

func TestWithinTxHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewStore().WithinTx(ctx, func(repository.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRanksAreCheckedAtCommit(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_, list := seed(t, s, "bob")

	a, err := s.Items().Create(ctx, &models.WishItem{WishListID: list.ID, Title: "A", MaxClaims: 1})
	require.NoError(t, err)
	b, err := s.Items().Create(ctx, &models.WishItem{WishListID: list.ID, Title: "B", MaxClaims: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, a.Rank)
	assert.Equal(t, 2, b.Rank)

	// A swap passes through a duplicate rank but commits cleanly.
	err = s.WithinTx(ctx, func(r repository.Repositories) error {
		if err := r.Items().SetRank(ctx, a.ID, 2); err != nil {
			return err
		}
		return r.Items().SetRank(ctx, b.ID, 1)
	})
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(r repository.Repositories) error {
		return r.Items().SetRank(ctx, a.ID, 1)
	})
	assert.ErrorContains(t, err, "duplicate rank")

	items, err := s.Items().ListByList(ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "B", items[0].Title)
	assert.Equal(t, "A", items[1].Title)
}

func TestClaimConstraints(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_, list := seed(t, s, "bob")
	carol, _ := seed(t, s, "carol")
	dave, _ := seed(t, s, "dave")

	item, err := s.Items().Create(ctx, &models.WishItem{WishListID: list.ID, Title: "Bike", MaxClaims: 1})
	require.NoError(t, err)

	_, err = s.Claims().Create(ctx, &models.Claim{ItemID: item.ID, ClaimedByID: carol.ID})
	require.NoError(t, err)
	_, err = s.Claims().Create(ctx, &models.Claim{ItemID: item.ID, ClaimedByID: carol.ID})
	assert.ErrorIs(t, err, models.ErrAlreadyClaimed)
	_, err = s.Claims().Create(ctx, &models.Claim{ItemID: item.ID, ClaimedByID: dave.ID})
	assert.ErrorIs(t, err, models.ErrClaimLimitReached)

	n, err := s.Claims().CountByItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, s.Claims().Delete(ctx, item.ID, dave.ID), models.ErrNoSuchClaim)
}

func TestPersonUniqueness(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	bob, _ := seed(t, s, "bob")

	_, err := s.Persons().Create(ctx, &models.Person{DisplayName: "Other Bob", Email: email("BOB@example.com")})
	assert.ErrorIs(t, err, models.ErrEmailInUse)

	tg := int64(77)
	bob.TelegramID = &tg
	_, err = s.Persons().Update(ctx, bob)
	require.NoError(t, err)

	carol, _ := seed(t, s, "carol")
	carol.TelegramID = &tg
	_, err = s.Persons().Update(ctx, carol)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	found, err := s.Persons().GetByEmail(ctx, " Bob@Example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, bob.ID, found.ID)

	missing, err := s.Persons().GetByID(ctx, 999)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReturnedPersonsAreCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	bob, _ := seed(t, s, "bob")

	got, err := s.Persons().GetByID(ctx, bob.ID)
	require.NoError(t, err)
	*got.Email = "mutated@example.com"

	again, err := s.Persons().GetByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", *again.Email)
}

func TestDeletePersonCascades(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	bob, list := seed(t, s, "bob")
	carol, carolList := seed(t, s, "carol")

	bike, err := s.Items().Create(ctx, &models.WishItem{WishListID: list.ID, Title: "Bike", MaxClaims: 1})
	require.NoError(t, err)
	scarf, err := s.Items().Create(ctx, &models.WishItem{WishListID: carolList.ID, Title: "Scarf", MaxClaims: 1})
	require.NoError(t, err)
	_, err = s.Claims().Create(ctx, &models.Claim{ItemID: bike.ID, ClaimedByID: carol.ID})
	require.NoError(t, err)
	_, err = s.Claims().Create(ctx, &models.Claim{ItemID: scarf.ID, ClaimedByID: bob.ID})
	require.NoError(t, err)

	carol.InvitedByID = &bob.ID
	_, err = s.Persons().Update(ctx, carol)
	require.NoError(t, err)

	require.NoError(t, s.Persons().Delete(ctx, bob.ID))

	gone, err := s.Lists().GetByOwner(ctx, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	item, err := s.Items().GetByID(ctx, bike.ID)
	require.NoError(t, err)
	assert.Nil(t, item)

	held, err := s.Claims().ListByClaimant(ctx, carol.ID)
	require.NoError(t, err)
	assert.Empty(t, held)
	onScarf, err := s.Claims().CountByItem(ctx, scarf.ID)
	require.NoError(t, err)
	assert.Zero(t, onScarf)

	carol, err = s.Persons().GetByID(ctx, carol.ID)
	require.NoError(t, err)
	assert.Nil(t, carol.InvitedByID)
}

func TestDeleteManagerIsRestricted(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	bob, _ := seed(t, s, "bob")

	kid, err := s.Persons().Create(ctx, &models.Person{DisplayName: "Dana", ManagedByID: &bob.ID})
	require.NoError(t, err)

	err = s.Persons().Delete(ctx, bob.ID)
	assert.ErrorIs(t, err, models.ErrHasActiveDependents)

	stored, err := s.Persons().GetByID(ctx, kid.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsManagedBy(bob.ID))

	require.NoError(t, s.Persons().Delete(ctx, kid.ID))
	require.NoError(t, s.Persons().Delete(ctx, bob.ID))
}

func TestClearExpiredTokens(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Date(2026, 12, 1, 12, 0, 0, 0, time.UTC)

	expired := now.Add(-time.Minute)
	valid := now.Add(time.Hour)
	for i, exp := range []time.Time{expired, valid} {
		token := []string{"old", "new"}[i]
		_, err := s.Persons().Create(ctx, &models.Person{
			DisplayName:        token,
			Email:              email(token + "@example.com"),
			InviteToken:        &token,
			InviteTokenExpires: &exp,
		})
		require.NoError(t, err)
	}

	resetter, _ := seed(t, s, "reset")
	resetter.ResetToken = ptrTo("stale-reset")
	resetter.ResetTokenExpires = &expired
	_, err := s.Persons().Update(ctx, resetter)
	require.NoError(t, err)

	n, err := s.Persons().ClearExpiredTokens(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	old, err := s.Persons().GetByInviteToken(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, old)
	fresh, err := s.Persons().GetByInviteToken(ctx, "new")
	require.NoError(t, err)
	assert.NotNil(t, fresh)
	stale, err := s.Persons().GetByResetToken(ctx, "stale-reset")
	require.NoError(t, err)
	assert.Nil(t, stale)
}
