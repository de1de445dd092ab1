package service_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/service"
)

func TestArchiveUser(t *testing.T) {
	t.Run("stamps the archive fields and keeps claims", func(t *testing.T) {
		f := newFixture(t)
		bike := f.item(f.bob.ID, "Bike", 1)
		_, err := f.svc.Claim(f.ctx, bike.ID, f.carol.ID)
		require.NoError(t, err)

		require.NoError(t, f.svc.ArchiveUser(f.ctx, f.carol.ID, f.admin.ID, "  moved abroad "))

		carol := f.person(f.carol.ID)
		assert.False(t, carol.IsActive)
		require.NotNil(t, carol.ArchivedAt)
		assert.Equal(t, f.clock.Now(), *carol.ArchivedAt)
		assert.Equal(t, f.admin.ID, *carol.ArchivedByID)
		assert.Equal(t, "moved abroad", carol.ArchivedReason)

		// The slot stays taken.
		assert.Equal(t, 1, f.claimCount(bike.ID))
		_, err = f.svc.Claim(f.ctx, bike.ID, f.admin.ID)
		assert.ErrorIs(t, err, models.ErrClaimLimitReached)
	})

	t.Run("only admins or the manager may archive", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.ArchiveUser(f.ctx, f.carol.ID, f.bob.ID, "")
		assert.ErrorIs(t, err, models.ErrForbidden)

		kid := f.child(f.bob.ID, "Dana")
		require.NoError(t, f.svc.ArchiveUser(f.ctx, kid.ID, f.bob.ID, "grew out of it"))
	})

	t.Run("already archived", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.ArchiveUser(f.ctx, f.carol.ID, f.admin.ID, ""))
		err := f.svc.ArchiveUser(f.ctx, f.carol.ID, f.admin.ID, "")
		assert.ErrorIs(t, err, models.ErrAlreadyArchived)
	})

	t.Run("last admin is protected", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.ArchiveUser(f.ctx, f.admin.ID, f.admin.ID, "")
		assert.ErrorIs(t, err, models.ErrLastAdminProtected)
		assert.True(t, f.person(f.admin.ID).IsActive)

		second, err := f.svc.CreateAccount(f.ctx, f.admin.ID, models.NewAccount{
			DisplayName: "Erin", Email: "erin@example.com", Password: testPassword, IsAdmin: true,
		})
		require.NoError(t, err)
		require.NoError(t, f.svc.ArchiveUser(f.ctx, f.admin.ID, second.ID, ""))

		err = f.svc.ArchiveUser(f.ctx, second.ID, second.ID, "")
		assert.ErrorIs(t, err, models.ErrLastAdminProtected)
	})

	t.Run("active dependents block and are listed", func(t *testing.T) {
		f := newFixture(t)
		dana := f.child(f.bob.ID, "Dana")
		eli := f.child(f.bob.ID, "Eli")

		err := f.svc.ArchiveUser(f.ctx, f.bob.ID, f.admin.ID, "")
		require.ErrorIs(t, err, models.ErrHasActiveDependents)
		var deps *models.DependentsError
		require.True(t, errors.As(err, &deps))
		assert.ElementsMatch(t, []int64{dana.ID, eli.ID}, deps.DependentIDs())

		// Archived dependents no longer block.
		require.NoError(t, f.svc.ArchiveUser(f.ctx, dana.ID, f.bob.ID, ""))
		require.NoError(t, f.svc.ArchiveUser(f.ctx, eli.ID, f.admin.ID, ""))
		require.NoError(t, f.svc.ArchiveUser(f.ctx, f.bob.ID, f.admin.ID, ""))
	})

	t.Run("archived actor cannot act", func(t *testing.T) {
		f := newFixture(t)
		kid := f.child(f.bob.ID, "Dana")
		require.NoError(t, f.svc.ArchiveUser(f.ctx, kid.ID, f.bob.ID, ""))
		require.NoError(t, f.svc.ArchiveUser(f.ctx, f.bob.ID, f.admin.ID, ""))

		err := f.svc.RestoreUser(f.ctx, kid.ID, f.bob.ID)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}

func TestRestoreUser(t *testing.T) {
	t.Run("clears the archive fields", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.ArchiveUser(f.ctx, f.carol.ID, f.admin.ID, "away"))
		require.NoError(t, f.svc.RestoreUser(f.ctx, f.carol.ID, f.admin.ID))

		carol := f.person(f.carol.ID)
		assert.True(t, carol.IsActive)
		assert.Nil(t, carol.ArchivedAt)
		assert.Nil(t, carol.ArchivedByID)
		assert.Empty(t, carol.ArchivedReason)
	})

	t.Run("not archived", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.RestoreUser(f.ctx, f.carol.ID, f.admin.ID)
		assert.ErrorIs(t, err, models.ErrNotArchived)
	})

	t.Run("child waits for the manager", func(t *testing.T) {
		f := newFixture(t)
		kid := f.child(f.bob.ID, "Dana")
		require.NoError(t, f.svc.ArchiveUser(f.ctx, kid.ID, f.admin.ID, ""))
		require.NoError(t, f.svc.ArchiveUser(f.ctx, f.bob.ID, f.admin.ID, ""))

		err := f.svc.RestoreUser(f.ctx, kid.ID, f.admin.ID)
		assert.ErrorIs(t, err, models.ErrManagerArchived)

		require.NoError(t, f.svc.RestoreUser(f.ctx, f.bob.ID, f.admin.ID))
		require.NoError(t, f.svc.RestoreUser(f.ctx, kid.ID, f.admin.ID))
	})
}

func TestPromoteChild(t *testing.T) {
	t.Run("third parties see the same list apart from the manager", func(t *testing.T) {
		f := newFixture(t)
		kid := f.child(f.bob.ID, "Dana")
		kite, err := f.svc.AddItem(f.ctx, f.bob.ID, f.listOf(kid.ID), models.ItemDraft{Title: "Kite"})
		require.NoError(t, err)
		_, err = f.svc.AddItem(f.ctx, f.bob.ID, f.listOf(kid.ID), models.ItemDraft{Title: "Paints", MaxClaims: 2})
		require.NoError(t, err)
		_, err = f.svc.Claim(f.ctx, kite.ID, f.carol.ID)
		require.NoError(t, err)

		before := f.render(kid.ID, f.carol.ID)

		result, err := f.svc.PromoteChild(f.ctx, kid.ID, f.bob.ID, "Dana@Example.com")
		require.NoError(t, err)
		assert.Equal(t, kid.ID, result.PersonID)
		assert.Empty(t, result.Warning)

		after := f.render(kid.ID, f.carol.ID)
		require.NotNil(t, before.ManagedByID)
		assert.Nil(t, after.ManagedByID)

		before.ManagedByID = nil
		beforeJSON, err := json.Marshal(before)
		require.NoError(t, err)
		afterJSON, err := json.Marshal(after)
		require.NoError(t, err)
		assert.Equal(t, string(beforeJSON), string(afterJSON))
	})

	t.Run("becomes an independent account with an invitation", func(t *testing.T) {
		f := newFixture(t)
		kid := f.child(f.bob.ID, "Dana")

		_, err := f.svc.PromoteChild(f.ctx, kid.ID, f.bob.ID, "dana@example.com")
		require.NoError(t, err)

		dana := f.person(kid.ID)
		assert.False(t, dana.IsChildProfile())
		assert.IsType(t, models.IndependentAccount{}, dana.Variant())
		assert.Equal(t, "dana@example.com", *dana.Email)
		assert.True(t, dana.PromotedFromChild)
		assert.Equal(t, f.bob.ID, *dana.PromotedByID)
		assert.False(t, dana.HasCredential())
		require.NotNil(t, dana.InviteToken)

		require.Len(t, f.mail.invitations, 1)
		inv := f.mail.invitations[0]
		assert.True(t, inv.Promoted)
		assert.Equal(t, *dana.InviteToken, inv.Token)
		assert.Equal(t, f.clock.Now().Add(service.DefaultInviteTTL), inv.ExpiresAt)

		// The former manager is no longer in charge.
		err = f.svc.ArchiveUser(f.ctx, kid.ID, f.bob.ID, "")
		assert.ErrorIs(t, err, models.ErrForbidden)

		// The promoted person can now claim from the former manager's list.
		bike := f.item(f.bob.ID, "Bike", 1)
		_, err = f.svc.CompleteInvitation(f.ctx, inv.Token, "brand new password")
		require.NoError(t, err)
		_, err = f.svc.Claim(f.ctx, bike.ID, kid.ID)
		assert.NoError(t, err)
	})

	t.Run("rejections", func(t *testing.T) {
		f := newFixture(t)
		kid := f.child(f.bob.ID, "Dana")

		_, err := f.svc.PromoteChild(f.ctx, f.carol.ID, f.admin.ID, "new@example.com")
		assert.ErrorIs(t, err, models.ErrNotAChildProfile)

		_, err = f.svc.PromoteChild(f.ctx, kid.ID, f.bob.ID, "CAROL@example.com")
		assert.ErrorIs(t, err, models.ErrEmailInUse)

		_, err = f.svc.PromoteChild(f.ctx, kid.ID, f.carol.ID, "dana@example.com")
		assert.ErrorIs(t, err, models.ErrForbidden)

		_, err = f.svc.PromoteChild(f.ctx, kid.ID, f.bob.ID, "not-an-email")
		assert.ErrorIs(t, err, models.ErrInvalidInput)

		_, err = f.svc.PromoteChild(f.ctx, kid.ID, f.bob.ID, "dana@example.com")
		require.NoError(t, err)
		_, err = f.svc.PromoteChild(f.ctx, kid.ID, f.admin.ID, "dana2@example.com")
		assert.ErrorIs(t, err, models.ErrAlreadyPromoted)
	})

	t.Run("archived child cannot be promoted", func(t *testing.T) {
		f := newFixture(t)
		kid := f.child(f.bob.ID, "Dana")
		require.NoError(t, f.svc.ArchiveUser(f.ctx, kid.ID, f.bob.ID, ""))

		_, err := f.svc.PromoteChild(f.ctx, kid.ID, f.bob.ID, "dana@example.com")
		assert.ErrorIs(t, err, models.ErrAlreadyArchived)
	})

	t.Run("mail failure is a warning", func(t *testing.T) {
		f := newFixture(t)
		kid := f.child(f.bob.ID, "Dana")
		f.mail.fail = errMailDown

		result, err := f.svc.PromoteChild(f.ctx, kid.ID, f.bob.ID, "dana@example.com")
		require.NoError(t, err)
		assert.NotEmpty(t, result.Warning)
		assert.False(t, f.person(kid.ID).IsChildProfile())
	})
}

func TestDeleteUser(t *testing.T) {
	t.Run("active target is refused whatever the credential", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.DeleteUser(f.ctx, f.carol.ID, f.admin.ID, testPassword, "carol@example.com")
		assert.ErrorIs(t, err, models.ErrNotArchived)

		err = f.svc.DeleteUser(f.ctx, f.carol.ID, f.admin.ID, "wrong", "carol@example.com")
		assert.ErrorIs(t, err, models.ErrNotArchived)
		assert.NotNil(t, f.person(f.carol.ID))
	})

	t.Run("requires an admin, the credential and the confirmation", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.svc.ArchiveUser(f.ctx, f.carol.ID, f.admin.ID, ""))

		err := f.svc.DeleteUser(f.ctx, f.carol.ID, f.bob.ID, testPassword, "carol@example.com")
		assert.ErrorIs(t, err, models.ErrForbidden)

		err = f.svc.DeleteUser(f.ctx, f.carol.ID, f.admin.ID, "wrong password", "carol@example.com")
		assert.ErrorIs(t, err, models.ErrInvalidCredential)

		err = f.svc.DeleteUser(f.ctx, f.carol.ID, f.admin.ID, testPassword, "carol")
		assert.ErrorIs(t, err, models.ErrConfirmationMismatch)

		assert.NotNil(t, f.person(f.carol.ID))
	})

	t.Run("removes the person, their list and every related claim", func(t *testing.T) {
		f := newFixture(t)
		bike := f.item(f.bob.ID, "Bike", 1)
		scarf := f.item(f.carol.ID, "Scarf", 1)
		_, err := f.svc.Claim(f.ctx, bike.ID, f.carol.ID)
		require.NoError(t, err)
		_, err = f.svc.Claim(f.ctx, scarf.ID, f.bob.ID)
		require.NoError(t, err)
		carolList := f.listOf(f.carol.ID)

		require.NoError(t, f.svc.ArchiveUser(f.ctx, f.carol.ID, f.admin.ID, ""))
		require.NoError(t, f.svc.DeleteUser(f.ctx, f.carol.ID, f.admin.ID, testPassword, "CAROL@example.com "))

		assert.Nil(t, f.person(f.carol.ID))
		list, err := f.store.Lists().GetByID(f.ctx, carolList)
		require.NoError(t, err)
		assert.Nil(t, list)
		item, err := f.store.Items().GetByID(f.ctx, scarf.ID)
		require.NoError(t, err)
		assert.Nil(t, item)

		// Bob's bike is free again.
		assert.Zero(t, f.claimCount(bike.ID))
		_, err = f.svc.Claim(f.ctx, bike.ID, f.admin.ID)
		assert.NoError(t, err)
	})

	t.Run("managers with remaining profiles cannot be deleted", func(t *testing.T) {
		f := newFixture(t)
		kid := f.child(f.bob.ID, "Dana")
		require.NoError(t, f.svc.ArchiveUser(f.ctx, kid.ID, f.bob.ID, ""))
		require.NoError(t, f.svc.ArchiveUser(f.ctx, f.bob.ID, f.admin.ID, ""))

		err := f.svc.DeleteUser(f.ctx, f.bob.ID, f.admin.ID, testPassword, "bob@example.com")
		assert.ErrorIs(t, err, models.ErrHasActiveDependents)
	})

	t.Run("child profiles confirm with the display name", func(t *testing.T) {
		f := newFixture(t)
		kid := f.child(f.bob.ID, "Dana")
		require.NoError(t, f.svc.ArchiveUser(f.ctx, kid.ID, f.bob.ID, ""))

		require.NoError(t, f.svc.DeleteUser(f.ctx, kid.ID, f.admin.ID, testPassword, "Dana"))
		assert.Nil(t, f.person(kid.ID))
	})
}
