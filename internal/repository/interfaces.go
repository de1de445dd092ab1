package repository

import (
	"context"
	"time"

	"github.com/Kerhoff/GiftboT/internal/models"
)

// PersonRepository defines the interface for person data operations.
// Lookups return (nil, nil) when nothing matches.
type PersonRepository interface {
	Create(ctx context.Context, person *models.Person) (*models.Person, error)
	GetByID(ctx context.Context, id int64) (*models.Person, error)
	GetByEmail(ctx context.Context, email string) (*models.Person, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.Person, error)
	GetByInviteToken(ctx context.Context, token string) (*models.Person, error)
	GetByResetToken(ctx context.Context, token string) (*models.Person, error)
	List(ctx context.Context, filters PersonFilters) ([]*models.Person, error)
	ListManagedBy(ctx context.Context, managerID int64, onlyActive bool) ([]*models.Person, error)
	// LockActiveAdmins locks and returns every active admin for the rest of
	// the transaction.
	LockActiveAdmins(ctx context.Context) ([]*models.Person, error)
	Update(ctx context.Context, person *models.Person) (*models.Person, error)
	// ClearExpiredTokens drops invitation and password reset tokens that
	// expired before now and returns the number of persons touched.
	ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// WishListRepository defines the interface for wish list operations
type WishListRepository interface {
	Create(ctx context.Context, list *models.WishList) (*models.WishList, error)
	GetByID(ctx context.Context, id int64) (*models.WishList, error)
	GetByOwner(ctx context.Context, ownerID int64) (*models.WishList, error)
	// Lock serializes item and rank changes on one list for the rest of the
	// transaction.
	Lock(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// WishItemRepository defines the interface for wish item operations
type WishItemRepository interface {
	// Create appends the item at rank max+1 of its list.
	Create(ctx context.Context, item *models.WishItem) (*models.WishItem, error)
	GetByID(ctx context.Context, id int64) (*models.WishItem, error)
	// GetForUpdate locks the item row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id int64) (*models.WishItem, error)
	ListByList(ctx context.Context, listID int64) ([]*models.WishItem, error)
	// Update writes every editable field except rank.
	Update(ctx context.Context, item *models.WishItem) (*models.WishItem, error)
	// ShiftRanks adds delta to every item of the list whose rank is within
	// [from, to].
	ShiftRanks(ctx context.Context, listID int64, from, to, delta int) error
	SetRank(ctx context.Context, id int64, rank int) error
	Delete(ctx context.Context, id int64) error
}

// ClaimRepository defines the interface for claim operations
type ClaimRepository interface {
	// Create inserts a claim. The store rejects duplicates with
	// models.ErrAlreadyClaimed and over-limit inserts with
	// models.ErrClaimLimitReached.
	Create(ctx context.Context, claim *models.Claim) (*models.Claim, error)
	Get(ctx context.Context, itemID, personID int64) (*models.Claim, error)
	CountByItem(ctx context.Context, itemID int64) (int, error)
	ListByItems(ctx context.Context, itemIDs []int64) ([]*models.Claim, error)
	ListByClaimant(ctx context.Context, personID int64) ([]*models.Claim, error)
	Delete(ctx context.Context, itemID, personID int64) error
	DeleteByItem(ctx context.Context, itemID int64) (int64, error)
	DeleteByClaimant(ctx context.Context, personID int64) (int64, error)
}

// Repositories groups the repositories that share one connection or
// transaction.
type Repositories interface {
	Persons() PersonRepository
	Lists() WishListRepository
	Items() WishItemRepository
	Claims() ClaimRepository
}

// Store is the backing store. Reads outside a transaction go through the
// embedded Repositories; every mutation of the core runs in WithinTx.
type Store interface {
	Repositories
	// WithinTx runs fn in a single transaction. The transaction commits when
	// fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(Repositories) error) error
	Close() error
}

// PersonFilters represents filters for listing persons
type PersonFilters struct {
	IncludeArchived bool
	OnlyAdmins      bool
	OnlyChildren    bool
}
