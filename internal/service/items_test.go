package service_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Kerhoff/GiftboT/internal/auth"
	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository/memory"
	"github.com/Kerhoff/GiftboT/internal/service"
)

func fiveItems(f *fixture) []*models.WishItem {
	items := make([]*models.WishItem, 0, 5)
	for _, title := range []string{"A", "B", "C", "D", "E"} {
		items = append(items, f.item(f.bob.ID, title, 1))
	}
	return items
}

func TestAddItemAppends(t *testing.T) {
	f := newFixture(t)
	items := fiveItems(f)

	for i, it := range items {
		assert.Equal(t, i+1, it.Rank)
		assert.Equal(t, f.bob.ID, it.CreatedByID)
	}

	t.Run("only owner or manager may add", func(t *testing.T) {
		_, err := f.svc.AddItem(f.ctx, f.carol.ID, f.listOf(f.bob.ID), models.ItemDraft{Title: "Sneaky"})
		assert.ErrorIs(t, err, models.ErrForbidden)

		// Admins get no special rights on other lists.
		_, err = f.svc.AddItem(f.ctx, f.admin.ID, f.listOf(f.bob.ID), models.ItemDraft{Title: "Sneaky"})
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("draft is validated", func(t *testing.T) {
		_, err := f.svc.AddItem(f.ctx, f.bob.ID, f.listOf(f.bob.ID), models.ItemDraft{Title: "  "})
		assert.ErrorIs(t, err, models.ErrInvalidInput)

		_, err = f.svc.AddItem(f.ctx, f.bob.ID, f.listOf(f.bob.ID), models.ItemDraft{Title: "Bad", URL: "not a url"})
		assert.ErrorIs(t, err, models.ErrInvalidInput)

		for _, raw := range []string{"-5", "123456789012.345"} {
			draft := models.ItemDraft{Title: "Priced", Price: decimal.NewNullDecimal(decimal.RequireFromString(raw))}
			_, err = f.svc.AddItem(f.ctx, f.bob.ID, f.listOf(f.bob.ID), draft)
			assert.ErrorIs(t, err, models.ErrInvalidInput, raw)
			assert.True(t, models.IsDomainError(err), raw)
		}
	})
}

func TestAddItemFetchesPreview(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := memory.NewStore()
	hasher := auth.NewHasher(bcrypt.MinCost)
	svc := service.New(service.Deps{
		Store:    store,
		Logger:   logger,
		Hasher:   hasher,
		Verifier: auth.NewPasswordVerifier(store.Persons(), hasher),
		Preview:  stubPreview{image: "https://shop.example/bike.jpg"},
	})

	ctx := context.Background()
	owner, err := svc.BootstrapAdmin(ctx, models.NewAccount{DisplayName: "Owner", Email: "owner@example.com", Password: testPassword})
	require.NoError(t, err)
	listID, err := svc.ListIDForPerson(ctx, owner.ID)
	require.NoError(t, err)

	withURL, err := svc.AddItem(ctx, owner.ID, listID, models.ItemDraft{Title: "Bike", URL: "https://shop.example/bike"})
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/bike.jpg", withURL.ImageURL)

	explicit, err := svc.AddItem(ctx, owner.ID, listID, models.ItemDraft{Title: "Bell", URL: "https://shop.example/bell", ImageURL: "https://cdn.example/bell.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/bell.png", explicit.ImageURL)

	noURL, err := svc.AddItem(ctx, owner.ID, listID, models.ItemDraft{Title: "Socks"})
	require.NoError(t, err)
	assert.Empty(t, noURL.ImageURL)
}

func TestReorderItem(t *testing.T) {
	t.Run("moving up shifts only the items in between", func(t *testing.T) {
		f := newFixture(t)
		items := fiveItems(f)

		require.NoError(t, f.svc.ReorderItem(f.ctx, f.bob.ID, f.listOf(f.bob.ID), items[2].ID, 1))
		assert.Equal(t, map[string]int{"C": 1, "A": 2, "B": 3, "D": 4, "E": 5}, f.ranks(f.bob.ID))
	})

	t.Run("moving down", func(t *testing.T) {
		f := newFixture(t)
		items := fiveItems(f)

		require.NoError(t, f.svc.ReorderItem(f.ctx, f.bob.ID, f.listOf(f.bob.ID), items[1].ID, 4))
		assert.Equal(t, map[string]int{"A": 1, "C": 2, "D": 3, "B": 4, "E": 5}, f.ranks(f.bob.ID))
	})

	t.Run("same rank is a no-op", func(t *testing.T) {
		f := newFixture(t)
		items := fiveItems(f)

		require.NoError(t, f.svc.ReorderItem(f.ctx, f.bob.ID, f.listOf(f.bob.ID), items[3].ID, 4))
		assert.Equal(t, map[string]int{"A": 1, "B": 2, "C": 3, "D": 4, "E": 5}, f.ranks(f.bob.ID))
	})

	t.Run("out of range", func(t *testing.T) {
		f := newFixture(t)
		items := fiveItems(f)

		for _, rank := range []int{0, -1, 6} {
			err := f.svc.ReorderItem(f.ctx, f.bob.ID, f.listOf(f.bob.ID), items[0].ID, rank)
			assert.ErrorIs(t, err, models.ErrInvalidRank, "rank %d", rank)
		}
		assert.Equal(t, map[string]int{"A": 1, "B": 2, "C": 3, "D": 4, "E": 5}, f.ranks(f.bob.ID))
	})

	t.Run("item from another list", func(t *testing.T) {
		f := newFixture(t)
		fiveItems(f)
		other := f.item(f.carol.ID, "Z", 1)

		err := f.svc.ReorderItem(f.ctx, f.bob.ID, f.listOf(f.bob.ID), other.ID, 1)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("non-owner is refused", func(t *testing.T) {
		f := newFixture(t)
		items := fiveItems(f)

		err := f.svc.ReorderItem(f.ctx, f.carol.ID, f.listOf(f.bob.ID), items[4].ID, 1)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}

func TestMoveItem(t *testing.T) {
	f := newFixture(t)
	items := fiveItems(f)

	require.NoError(t, f.svc.MoveItem(f.ctx, f.bob.ID, items[2].ID, service.Up))
	assert.Equal(t, map[string]int{"A": 1, "C": 2, "B": 3, "D": 4, "E": 5}, f.ranks(f.bob.ID))

	require.NoError(t, f.svc.MoveItem(f.ctx, f.bob.ID, items[2].ID, service.Down))
	assert.Equal(t, map[string]int{"A": 1, "B": 2, "C": 3, "D": 4, "E": 5}, f.ranks(f.bob.ID))

	// Boundaries do nothing.
	require.NoError(t, f.svc.MoveItem(f.ctx, f.bob.ID, items[0].ID, service.Up))
	require.NoError(t, f.svc.MoveItem(f.ctx, f.bob.ID, items[4].ID, service.Down))
	assert.Equal(t, map[string]int{"A": 1, "B": 2, "C": 3, "D": 4, "E": 5}, f.ranks(f.bob.ID))

	err := f.svc.MoveItem(f.ctx, f.bob.ID, items[0].ID, service.Direction("sideways"))
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestDeleteItem(t *testing.T) {
	f := newFixture(t)
	items := fiveItems(f)
	dave := f.account("Dave", "dave@example.com")

	_, err := f.svc.Claim(f.ctx, items[1].ID, f.carol.ID)
	require.NoError(t, err)

	t.Run("non-owner is refused", func(t *testing.T) {
		err := f.svc.DeleteItem(f.ctx, dave.ID, items[1].ID)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("removes claims, closes the gap and notifies claimers", func(t *testing.T) {
		require.NoError(t, f.svc.DeleteItem(f.ctx, f.bob.ID, items[1].ID))

		assert.Equal(t, map[string]int{"A": 1, "C": 2, "D": 3, "E": 4}, f.ranks(f.bob.ID))
		assert.Zero(t, f.claimCount(items[1].ID))

		require.Len(t, f.mail.removed, 1)
		assert.Equal(t, "carol@example.com", f.mail.removed[0].Email)
		assert.Equal(t, "B", f.mail.removed[0].ItemTitle)
		assert.Equal(t, "Bob", f.mail.removed[0].OwnerName)

		// New items still go to the end.
		added := f.item(f.bob.ID, "F", 1)
		assert.Equal(t, 5, added.Rank)
	})

	t.Run("mail failure does not undo the delete", func(t *testing.T) {
		_, err := f.svc.Claim(f.ctx, items[0].ID, f.carol.ID)
		require.NoError(t, err)
		f.mail.fail = errMailDown
		defer func() { f.mail.fail = nil }()

		require.NoError(t, f.svc.DeleteItem(f.ctx, f.bob.ID, items[0].ID))
		item, err := f.store.Items().GetByID(f.ctx, items[0].ID)
		require.NoError(t, err)
		assert.Nil(t, item)
	})
}

func TestEditItem(t *testing.T) {
	f := newFixture(t)
	dave := f.account("Dave", "dave@example.com")
	card := f.item(f.bob.ID, "Gift card", 3)
	f.item(f.bob.ID, "Socks", 1)

	for _, p := range []*models.Person{f.carol, dave, f.admin} {
		_, err := f.svc.Claim(f.ctx, card.ID, p.ID)
		require.NoError(t, err)
	}

	t.Run("keeps rank", func(t *testing.T) {
		edited, err := f.svc.EditItem(f.ctx, f.bob.ID, card.ID, models.ItemDraft{Title: "Bookshop card", MaxClaims: 3})
		require.NoError(t, err)
		assert.Equal(t, "Bookshop card", edited.Title)
		assert.Equal(t, 1, edited.Rank)
		assert.Equal(t, 3, f.claimCount(card.ID))
		assert.Empty(t, f.mail.removed)
	})

	t.Run("lowering max claims releases the newest claims", func(t *testing.T) {
		_, err := f.svc.EditItem(f.ctx, f.bob.ID, card.ID, models.ItemDraft{Title: "Bookshop card", MaxClaims: 1})
		require.NoError(t, err)

		assert.Equal(t, 1, f.claimCount(card.ID))
		kept, err := f.store.Claims().Get(f.ctx, card.ID, f.carol.ID)
		require.NoError(t, err)
		assert.NotNil(t, kept)

		emails := make([]string, 0, len(f.mail.removed))
		for _, m := range f.mail.removed {
			emails = append(emails, m.Email)
		}
		assert.ElementsMatch(t, []string{"dave@example.com", "alice@example.com"}, emails)
	})

	t.Run("non-owner is refused", func(t *testing.T) {
		_, err := f.svc.EditItem(f.ctx, f.carol.ID, card.ID, models.ItemDraft{Title: "Mine now"})
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}
