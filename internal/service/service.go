package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/GiftboT/internal/mailer"
	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository"
)

const (
	// DefaultInviteTTL is how long an invitation token stays valid.
	DefaultInviteTTL = 48 * time.Hour
	// DefaultResetTTL is how long a password reset token stays valid.
	DefaultResetTTL = 24 * time.Hour
)

// PasswordHasher hashes new credentials and checks existing ones.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Matches(hash, password string) bool
}

// CredentialVerifier re-authenticates an actor before irreversible actions.
type CredentialVerifier interface {
	Verify(ctx context.Context, personID int64, credential string) (bool, error)
}

// PreviewFetcher returns a thumbnail URL for a product page, or "".
type PreviewFetcher interface {
	FetchImage(ctx context.Context, pageURL string) string
}

// Deps holds the collaborators of the service.
type Deps struct {
	Store     repository.Store
	Logger    *logrus.Logger
	Hasher    PasswordHasher
	Verifier  CredentialVerifier
	Mailer    mailer.Mailer
	Preview   PreviewFetcher
	Metrics   *Metrics
	InviteTTL time.Duration
	ResetTTL  time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service is the central business logic layer. It owns every invariant of
// the membership lifecycle and the claim ledger; adapters only translate.
type Service struct {
	store     repository.Store
	logger    *logrus.Logger
	hasher    PasswordHasher
	verifier  CredentialVerifier
	mailer    mailer.Mailer
	preview   PreviewFetcher
	metrics   *Metrics
	inviteTTL time.Duration
	resetTTL  time.Duration
	now       func() time.Time
}

// New creates a new Service with all required dependencies.
func New(deps Deps) *Service {
	s := &Service{
		store:     deps.Store,
		logger:    deps.Logger,
		hasher:    deps.Hasher,
		verifier:  deps.Verifier,
		mailer:    deps.Mailer,
		preview:   deps.Preview,
		metrics:   deps.Metrics,
		inviteTTL: deps.InviteTTL,
		resetTTL:  deps.ResetTTL,
		now:       deps.Now,
	}
	if s.logger == nil {
		s.logger = logrus.New()
	}
	if s.mailer == nil {
		s.mailer = mailer.NewLogMailer(mailer.Config{}, s.logger)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.inviteTTL <= 0 {
		s.inviteTTL = DefaultInviteTTL
	}
	if s.resetTTL <= 0 {
		s.resetTTL = DefaultResetTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// getPerson loads a person or fails with ErrNotFound.
func getPerson(ctx context.Context, r repository.Repositories, id int64) (*models.Person, error) {
	person, err := r.Persons().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load person %d: %w", id, err)
	}
	if person == nil {
		return nil, fmt.Errorf("person %d: %w", id, models.ErrNotFound)
	}
	return person, nil
}

// getActor loads the acting person; archived persons cannot act.
func getActor(ctx context.Context, r repository.Repositories, id int64) (*models.Person, error) {
	actor, err := getPerson(ctx, r, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsActive {
		return nil, fmt.Errorf("person %d is archived: %w", id, models.ErrForbidden)
	}
	return actor, nil
}

func getAdmin(ctx context.Context, r repository.Repositories, id int64) (*models.Person, error) {
	actor, err := getActor(ctx, r, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin {
		return nil, fmt.Errorf("person %d is not an admin: %w", id, models.ErrForbidden)
	}
	return actor, nil
}

func getList(ctx context.Context, r repository.Repositories, id int64) (*models.WishList, error) {
	list, err := r.Lists().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load wish list %d: %w", id, err)
	}
	if list == nil {
		return nil, fmt.Errorf("wish list %d: %w", id, models.ErrNotFound)
	}
	return list, nil
}

func getItem(ctx context.Context, r repository.Repositories, id int64, forUpdate bool) (*models.WishItem, error) {
	var (
		item *models.WishItem
		err  error
	)
	if forUpdate {
		item, err = r.Items().GetForUpdate(ctx, id)
	} else {
		item, err = r.Items().GetByID(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load wish item %d: %w", id, err)
	}
	if item == nil {
		return nil, fmt.Errorf("wish item %d: %w", id, models.ErrNotFound)
	}
	return item, nil
}

// canManage reports whether actor may edit the owner's list and profile:
// the owner themself or the manager of a child profile.
func canManage(actor, owner *models.Person) bool {
	return actor.ID == owner.ID || owner.IsManagedBy(actor.ID)
}

// createPersonWithList inserts the person and its wish list in the caller's
// transaction.
func createPersonWithList(ctx context.Context, r repository.Repositories, person *models.Person) (*models.Person, error) {
	person, err := r.Persons().Create(ctx, person)
	if err != nil {
		return nil, fmt.Errorf("failed to create person: %w", err)
	}
	if _, err := r.Lists().Create(ctx, &models.WishList{OwnerID: person.ID, Name: person.ListName()}); err != nil {
		return nil, fmt.Errorf("failed to create wish list for person %d: %w", person.ID, err)
	}
	return person, nil
}
