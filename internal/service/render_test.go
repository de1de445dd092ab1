package service_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/service"
)

func TestRenderListOwnerSeesNoClaims(t *testing.T) {
	f := newFixture(t)
	claimed := f.item(f.bob.ID, "Bike", 1)
	f.item(f.bob.ID, "Helmet", 1)

	before := f.render(f.bob.ID, f.bob.ID)

	_, err := f.svc.Claim(f.ctx, claimed.ID, f.carol.ID)
	require.NoError(t, err)

	after := f.render(f.bob.ID, f.bob.ID)
	assert.True(t, after.ViewerIsOwner)
	for _, item := range after.Items {
		assert.Nil(t, item.Claim, "owner view of %q carries claim status", item.Title)
	}
	// A claim changes nothing the owner can observe.
	assert.Equal(t, before, after)
}

func TestRenderListManagerGetsOwnerView(t *testing.T) {
	f := newFixture(t)
	kid := f.child(f.bob.ID, "Dana")
	kite, err := f.svc.AddItem(f.ctx, f.bob.ID, f.listOf(kid.ID), models.ItemDraft{Title: "Kite"})
	require.NoError(t, err)
	_, err = f.svc.Claim(f.ctx, kite.ID, f.carol.ID)
	require.NoError(t, err)

	view := f.render(kid.ID, f.bob.ID)
	assert.True(t, view.ViewerIsOwner)
	require.Len(t, view.Items, 1)
	assert.Nil(t, view.Items[0].Claim)
}

func TestRenderListClaimStatus(t *testing.T) {
	f := newFixture(t)
	dave := f.account("Dave", "dave@example.com")
	bike := f.item(f.bob.ID, "Bike", 1)
	card := f.item(f.bob.ID, "Gift card", 2)
	f.item(f.bob.ID, "Socks", 1)

	_, err := f.svc.Claim(f.ctx, bike.ID, f.carol.ID)
	require.NoError(t, err)
	_, err = f.svc.Claim(f.ctx, card.ID, f.carol.ID)
	require.NoError(t, err)

	carolView := f.render(f.bob.ID, f.carol.ID)
	daveView := f.render(f.bob.ID, dave.ID)
	require.Len(t, carolView.Items, 3)
	require.Len(t, daveView.Items, 3)

	assert.Equal(t, &models.ClaimStatus{ClaimedByViewer: true, FullyClaimed: true}, carolView.Items[0].Claim)
	assert.Equal(t, &models.ClaimStatus{ClaimedByViewer: true, FullyClaimed: false}, carolView.Items[1].Claim)
	assert.Equal(t, &models.ClaimStatus{}, carolView.Items[2].Claim)

	assert.Equal(t, &models.ClaimStatus{FullyClaimed: true}, daveView.Items[0].Claim)
	assert.Equal(t, &models.ClaimStatus{}, daveView.Items[1].Claim)
	assert.Equal(t, &models.ClaimStatus{}, daveView.Items[2].Claim)
	assert.False(t, daveView.ViewerIsOwner)
}

func TestRenderListAdminGetsNoExtraDetail(t *testing.T) {
	f := newFixture(t)
	dave := f.account("Dave", "dave@example.com")
	bike := f.item(f.bob.ID, "Bike", 1)
	_, err := f.svc.Claim(f.ctx, bike.ID, f.carol.ID)
	require.NoError(t, err)

	adminView := f.render(f.bob.ID, f.admin.ID)
	daveView := f.render(f.bob.ID, dave.ID)
	assert.Equal(t, daveView.Items, adminView.Items)
}

func TestRenderListAvailableOnly(t *testing.T) {
	f := newFixture(t)
	dave := f.account("Dave", "dave@example.com")
	bike := f.item(f.bob.ID, "Bike", 1)
	f.item(f.bob.ID, "Helmet", 1)
	_, err := f.svc.Claim(f.ctx, bike.ID, f.carol.ID)
	require.NoError(t, err)

	opts := service.RenderOptions{AvailableOnly: true}

	daveView, err := f.svc.RenderList(f.ctx, f.listOf(f.bob.ID), dave.ID, opts)
	require.NoError(t, err)
	require.Len(t, daveView.Items, 1)
	assert.Equal(t, "Helmet", daveView.Items[0].Title)
	assert.Equal(t, 2, daveView.TotalItems)

	// The claimer keeps seeing the item they are buying.
	carolView, err := f.svc.RenderList(f.ctx, f.listOf(f.bob.ID), f.carol.ID, opts)
	require.NoError(t, err)
	assert.Len(t, carolView.Items, 2)

	// The owner view ignores the filter.
	ownerView, err := f.svc.RenderList(f.ctx, f.listOf(f.bob.ID), f.bob.ID, opts)
	require.NoError(t, err)
	assert.Len(t, ownerView.Items, 2)
}

func TestRenderListArchivedOwner(t *testing.T) {
	f := newFixture(t)
	f.item(f.bob.ID, "Bike", 1)
	listID := f.listOf(f.bob.ID)
	require.NoError(t, f.svc.ArchiveUser(f.ctx, f.bob.ID, f.admin.ID, ""))

	_, err := f.svc.RenderList(f.ctx, listID, f.carol.ID, service.RenderOptions{})
	assert.ErrorIs(t, err, models.ErrNotFound)

	view, err := f.svc.RenderList(f.ctx, listID, f.admin.ID, service.RenderOptions{})
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
}

func TestAuditClaims(t *testing.T) {
	f := newFixture(t)
	bike := f.item(f.bob.ID, "Bike", 1)
	_, err := f.svc.Claim(f.ctx, bike.ID, f.carol.ID)
	require.NoError(t, err)

	t.Run("non-admin is refused", func(t *testing.T) {
		_, err := f.svc.AuditClaims(f.ctx, f.carol.ID, f.listOf(f.bob.ID))
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("admin cannot audit own list", func(t *testing.T) {
		_, err := f.svc.AuditClaims(f.ctx, f.admin.ID, f.listOf(f.admin.ID))
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("admin sees claimants and the access is logged", func(t *testing.T) {
		f.logs.Reset()

		audit, err := f.svc.AuditClaims(f.ctx, f.admin.ID, f.listOf(f.bob.ID))
		require.NoError(t, err)
		require.Len(t, audit, 1)
		assert.Equal(t, bike.ID, audit[0].ItemID)
		assert.Equal(t, "Bike", audit[0].ItemTitle)
		assert.Equal(t, f.carol.ID, audit[0].ClaimantID)
		assert.Equal(t, "Carol", audit[0].ClaimantName)
		assert.Equal(t, "active", audit[0].ClaimantState)

		entry := f.logs.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, logrus.WarnLevel, entry.Level)
		assert.Equal(t, f.admin.ID, entry.Data["admin_id"])
	})
}
