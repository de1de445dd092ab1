package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository"
)

// Ensure Store implements repository.Store
var _ repository.Store = (*Store)(nil)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	// raised by the enforce_claim_limit trigger
	codeClaimLimit = "GB001"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so the repositories work
// inside and outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the Postgres-backed repository.Store.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Postgres store on an open connection pool
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Persons() repository.PersonRepository { return NewPersonRepository(s.db) }
func (s *Store) Lists() repository.WishListRepository { return NewWishListRepository(s.db) }
func (s *Store) Items() repository.WishItemRepository { return NewWishItemRepository(s.db) }
func (s *Store) Claims() repository.ClaimRepository   { return NewClaimRepository(s.db) }

// WithinTx runs fn in a READ COMMITTED transaction. Invariants that span rows
// are protected by explicit row locks (SELECT ... FOR UPDATE) taken by the
// repositories and by the schema's constraints and trigger.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(txRepositories{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}
	return nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

type txRepositories struct {
	tx *sql.Tx
}

func (r txRepositories) Persons() repository.PersonRepository { return NewPersonRepository(r.tx) }
func (r txRepositories) Lists() repository.WishListRepository { return NewWishListRepository(r.tx) }
func (r txRepositories) Items() repository.WishItemRepository { return NewWishItemRepository(r.tx) }
func (r txRepositories) Claims() repository.ClaimRepository   { return NewClaimRepository(r.tx) }

// mapError converts constraint violations into domain errors. Anything else
// is returned unchanged.
func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeClaimLimit:
		return models.ErrClaimLimitReached
	case codeUniqueViolation:
		switch pqErr.Constraint {
		case "claims_item_claimant_key":
			return models.ErrAlreadyClaimed
		case "idx_persons_email":
			return models.ErrEmailInUse
		case "idx_persons_telegram_id":
			return fmt.Errorf("telegram id already linked: %w", models.ErrInvalidInput)
		}
	case codeForeignKeyViolation:
		if pqErr.Constraint == "persons_managed_by_id_fkey" {
			return models.ErrHasActiveDependents
		}
	}
	return err
}

func rowsAffected(result sql.Result, what string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s with ID %d: %w", what, id, models.ErrNotFound)
	}
	return nil
}
