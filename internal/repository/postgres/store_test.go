package postgres_test

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/Kerhoff/GiftboT/internal/auth"
	"github.com/Kerhoff/GiftboT/internal/config"
	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository/postgres"
	"github.com/Kerhoff/GiftboT/internal/service"
)

// These tests run against a disposable database named by
// GIFTBOT_TEST_DATABASE_URL. Every table is truncated first.
func openStore(t *testing.T) (*postgres.Store, *service.Service) {
	t.Helper()
	url := os.Getenv("GIFTBOT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("GIFTBOT_TEST_DATABASE_URL not set")
	}

	logger, _ := test.NewNullLogger()
	ctx := context.Background()
	db, err := config.NewDatabase(ctx, url, logger)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	_, err = db.ExecContext(ctx, "TRUNCATE claims, wish_items, wish_lists, persons RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	store := postgres.NewStore(db.DB)
	t.Cleanup(func() { _ = store.Close() })

	hasher := auth.NewHasher(bcrypt.MinCost)
	svc := service.New(service.Deps{
		Store:    store,
		Logger:   logger,
		Hasher:   hasher,
		Verifier: auth.NewPasswordVerifier(store.Persons(), hasher),
	})
	return store, svc
}

func TestPostgresClaimLimitUnderContention(t *testing.T) {
	_, svc := openStore(t)
	ctx := context.Background()

	admin, err := svc.BootstrapAdmin(ctx, models.NewAccount{DisplayName: "Alice", Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)
	listID, err := svc.ListIDForPerson(ctx, admin.ID)
	require.NoError(t, err)
	item, err := svc.AddItem(ctx, admin.ID, listID, models.ItemDraft{Title: "Tickets", MaxClaims: 3})
	require.NoError(t, err)

	guests := make([]*models.Person, 0, 10)
	for i := range 10 {
		g, err := svc.CreateAccount(ctx, admin.ID, models.NewAccount{
			DisplayName: fmt.Sprintf("Guest %d", i),
			Email:       fmt.Sprintf("guest%d@example.com", i),
			Password:    "correct horse",
		})
		require.NoError(t, err)
		guests = append(guests, g)
	}

	var won atomic.Int32
	var g errgroup.Group
	for _, guest := range guests {
		g.Go(func() error {
			_, err := svc.Claim(ctx, item.ID, guest.ID)
			if err == nil {
				won.Add(1)
				return nil
			}
			if !assert.ErrorIs(t, err, models.ErrClaimLimitReached) {
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 3, won.Load())
}

func TestPostgresReorderAndDelete(t *testing.T) {
	store, svc := openStore(t)
	ctx := context.Background()

	owner, err := svc.BootstrapAdmin(ctx, models.NewAccount{DisplayName: "Bob", Email: "bob@example.com", Password: "correct horse"})
	require.NoError(t, err)
	listID, err := svc.ListIDForPerson(ctx, owner.ID)
	require.NoError(t, err)

	ids := make([]int64, 0, 4)
	for _, title := range []string{"A", "B", "C", "D"} {
		item, err := svc.AddItem(ctx, owner.ID, listID, models.ItemDraft{Title: title})
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}

	require.NoError(t, svc.ReorderItem(ctx, owner.ID, listID, ids[3], 1))
	require.NoError(t, svc.DeleteItem(ctx, owner.ID, ids[1]))

	items, err := store.Items().ListByList(ctx, listID)
	require.NoError(t, err)
	ranks := map[string]int{}
	for _, it := range items {
		ranks[it.Title] = it.Rank
	}
	assert.Equal(t, map[string]int{"D": 1, "A": 2, "C": 3}, ranks)

	_, err = store.Persons().Create(ctx, &models.Person{DisplayName: "Dup", Email: owner.Email})
	assert.ErrorIs(t, err, models.ErrEmailInUse)
}

func TestPostgresPasswordResetAndManagerDelete(t *testing.T) {
	store, svc := openStore(t)
	ctx := context.Background()

	admin, err := svc.BootstrapAdmin(ctx, models.NewAccount{DisplayName: "Alice", Email: "alice@example.com", Password: "correct horse"})
	require.NoError(t, err)
	require.NoError(t, svc.RequestPasswordReset(ctx, "alice@example.com"))

	stored, err := store.Persons().GetByID(ctx, admin.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetToken)
	require.NotNil(t, stored.ResetTokenExpires)

	byToken, err := store.Persons().GetByResetToken(ctx, *stored.ResetToken)
	require.NoError(t, err)
	require.NotNil(t, byToken)
	assert.Equal(t, admin.ID, byToken.ID)

	n, err := store.Persons().ClearExpiredTokens(ctx, stored.ResetTokenExpires.Add(time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	byToken, err = store.Persons().GetByResetToken(ctx, *stored.ResetToken)
	require.NoError(t, err)
	assert.Nil(t, byToken)

	_, err = svc.CreateChildProfile(ctx, admin.ID, "Dana")
	require.NoError(t, err)
	err = store.Persons().Delete(ctx, admin.ID)
	assert.ErrorIs(t, err, models.ErrHasActiveDependents)
}
