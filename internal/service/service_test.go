package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Kerhoff/GiftboT/internal/auth"
	"github.com/Kerhoff/GiftboT/internal/mailer"
	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository/memory"
	"github.com/Kerhoff/GiftboT/internal/service"
)

const testPassword = "correct horse battery"

type recordingMailer struct {
	mu          sync.Mutex
	invitations []mailer.Invitation
	resets      []mailer.PasswordReset
	removed     []mailer.ItemRemoved
	fail        error
}

func (m *recordingMailer) SendInvitation(ctx context.Context, inv mailer.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.invitations = append(m.invitations, inv)
	return nil
}

func (m *recordingMailer) SendPasswordReset(ctx context.Context, reset mailer.PasswordReset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.resets = append(m.resets, reset)
	return nil
}

func (m *recordingMailer) SendItemRemoved(ctx context.Context, msg mailer.ItemRemoved) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.removed = append(m.removed, msg)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubPreview struct{ image string }

func (p stubPreview) FetchImage(ctx context.Context, pageURL string) string { return p.image }

// fixture is a household of one admin and two members, each with an empty
// wish list.
type fixture struct {
	svc   *service.Service
	store *memory.Store
	mail  *recordingMailer
	clock *clock
	logs  *test.Hook
	admin *models.Person
	bob   *models.Person
	carol *models.Person
	lists map[int64]int64
	ctx   context.Context
	t     *testing.T
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	store := memory.NewStore()
	hasher := auth.NewHasher(bcrypt.MinCost)
	mail := &recordingMailer{}
	clk := &clock{now: time.Date(2026, 12, 1, 12, 0, 0, 0, time.UTC)}

	svc := service.New(service.Deps{
		Store:    store,
		Logger:   logger,
		Hasher:   hasher,
		Verifier: auth.NewPasswordVerifier(store.Persons(), hasher),
		Mailer:   mail,
		Preview:  stubPreview{},
		Now:      clk.Now,
	})

	f := &fixture{
		svc:   svc,
		store: store,
		mail:  mail,
		clock: clk,
		logs:  hook,
		lists: make(map[int64]int64),
		ctx:   context.Background(),
		t:     t,
	}

	var err error
	f.admin, err = svc.BootstrapAdmin(f.ctx, models.NewAccount{DisplayName: "Alice", Email: "alice@example.com", Password: testPassword})
	require.NoError(t, err)
	f.bob = f.account("Bob", "bob@example.com")
	f.carol = f.account("Carol", "carol@example.com")
	return f
}

func (f *fixture) account(name, email string) *models.Person {
	f.t.Helper()
	p, err := f.svc.CreateAccount(f.ctx, f.admin.ID, models.NewAccount{DisplayName: name, Email: email, Password: testPassword})
	require.NoError(f.t, err)
	return p
}

func (f *fixture) child(managerID int64, name string) *models.Person {
	f.t.Helper()
	p, err := f.svc.CreateChildProfile(f.ctx, managerID, name)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) listOf(personID int64) int64 {
	f.t.Helper()
	if id, ok := f.lists[personID]; ok {
		return id
	}
	id, err := f.svc.ListIDForPerson(f.ctx, personID)
	require.NoError(f.t, err)
	f.lists[personID] = id
	return id
}

func (f *fixture) item(ownerID int64, title string, maxClaims int) *models.WishItem {
	f.t.Helper()
	item, err := f.svc.AddItem(f.ctx, ownerID, f.listOf(ownerID), models.ItemDraft{Title: title, MaxClaims: maxClaims})
	require.NoError(f.t, err)
	return item
}

func (f *fixture) render(ownerID, viewerID int64) *models.ListView {
	f.t.Helper()
	view, err := f.svc.RenderList(f.ctx, f.listOf(ownerID), viewerID, service.RenderOptions{})
	require.NoError(f.t, err)
	return view
}

func (f *fixture) person(id int64) *models.Person {
	f.t.Helper()
	p, err := f.store.Persons().GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) claimCount(itemID int64) int {
	f.t.Helper()
	n, err := f.store.Claims().CountByItem(f.ctx, itemID)
	require.NoError(f.t, err)
	return n
}

func (f *fixture) ranks(ownerID int64) map[string]int {
	f.t.Helper()
	items, err := f.store.Items().ListByList(f.ctx, f.listOf(ownerID))
	require.NoError(f.t, err)
	out := make(map[string]int, len(items))
	for _, it := range items {
		out[it.Title] = it.Rank
	}
	return out
}

var errMailDown = errors.New("smtp: connection refused")
