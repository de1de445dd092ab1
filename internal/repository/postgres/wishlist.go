package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository"
)

type wishListRepository struct {
	db dbtx
}

// NewWishListRepository creates a new wish list repository
func NewWishListRepository(db dbtx) repository.WishListRepository {
	return &wishListRepository{db: db}
}

func (r *wishListRepository) Create(ctx context.Context, list *models.WishList) (*models.WishList, error) {
	query := `
		INSERT INTO wish_lists (owner_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	now := time.Now()
	list.CreatedAt = now
	list.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, query,
		list.OwnerID,
		list.Name,
		list.CreatedAt,
		list.UpdatedAt,
	).Scan(&list.ID, &list.CreatedAt, &list.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create wish list: %w", err)
	}

	return list, nil
}

func (r *wishListRepository) GetByID(ctx context.Context, id int64) (*models.WishList, error) {
	query := `
		SELECT id, owner_id, name, created_at, updated_at
		FROM wish_lists
		WHERE id = $1`

	return r.getOne(ctx, query, id)
}

func (r *wishListRepository) GetByOwner(ctx context.Context, ownerID int64) (*models.WishList, error) {
	query := `
		SELECT id, owner_id, name, created_at, updated_at
		FROM wish_lists
		WHERE owner_id = $1`

	return r.getOne(ctx, query, ownerID)
}

func (r *wishListRepository) Lock(ctx context.Context, id int64) error {
	query := `SELECT id FROM wish_lists WHERE id = $1 FOR UPDATE`

	var locked int64
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&locked); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("wish list with ID %d: %w", id, models.ErrNotFound)
		}
		return fmt.Errorf("failed to lock wish list: %w", err)
	}
	return nil
}

func (r *wishListRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM wish_lists WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete wish list: %w", err)
	}

	return rowsAffected(result, "wish list", id)
}

func (r *wishListRepository) getOne(ctx context.Context, query string, arg int64) (*models.WishList, error) {
	list := &models.WishList{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&list.ID,
		&list.OwnerID,
		&list.Name,
		&list.CreatedAt,
		&list.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wish list: %w", err)
	}

	return list, nil
}

const itemColumns = `id, wish_list_id, title, description, url, price, notes, image_url,
		rank, max_claims, COALESCE(created_by_id, 0), created_at, updated_at`

type wishItemRepository struct {
	db dbtx
}

// NewWishItemRepository creates a new wish item repository
func NewWishItemRepository(db dbtx) repository.WishItemRepository {
	return &wishItemRepository{db: db}
}

// Create appends the item after the current lowest-priority item. Callers
// lock the list first so two concurrent adds cannot pick the same rank.
func (r *wishItemRepository) Create(ctx context.Context, item *models.WishItem) (*models.WishItem, error) {
	query := `
		INSERT INTO wish_items (wish_list_id, title, description, url, price, notes, image_url,
			rank, max_claims, created_by_id, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, COALESCE(MAX(rank), 0) + 1, $8, $9, $10, $11
		FROM wish_items
		WHERE wish_list_id = $1
		RETURNING id, rank, created_at, updated_at`

	if item.MaxClaims < 1 {
		item.MaxClaims = models.DefaultMaxClaims
	}
	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, query,
		item.WishListID,
		item.Title,
		item.Description,
		item.URL,
		item.Price,
		item.Notes,
		item.ImageURL,
		item.MaxClaims,
		nullableID(item.CreatedByID),
		item.CreatedAt,
		item.UpdatedAt,
	).Scan(&item.ID, &item.Rank, &item.CreatedAt, &item.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to add wish item: %w", err)
	}

	return item, nil
}

func (r *wishItemRepository) GetByID(ctx context.Context, id int64) (*models.WishItem, error) {
	query := `SELECT ` + itemColumns + ` FROM wish_items WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *wishItemRepository) GetForUpdate(ctx context.Context, id int64) (*models.WishItem, error) {
	query := `SELECT ` + itemColumns + ` FROM wish_items WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *wishItemRepository) ListByList(ctx context.Context, listID int64) ([]*models.WishItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM wish_items
		WHERE wish_list_id = $1
		ORDER BY rank ASC`

	rows, err := r.db.QueryContext(ctx, query, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wish items: %w", err)
	}
	defer rows.Close()

	var items []*models.WishItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wish item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *wishItemRepository) Update(ctx context.Context, item *models.WishItem) (*models.WishItem, error) {
	query := `
		UPDATE wish_items
		SET title = $2, description = $3, url = $4, price = $5, notes = $6, image_url = $7,
			max_claims = $8, updated_at = $9
		WHERE id = $1
		RETURNING wish_list_id, rank, COALESCE(created_by_id, 0), created_at, updated_at`

	item.UpdatedAt = time.Now()

	err := r.db.QueryRowContext(ctx, query,
		item.ID,
		item.Title,
		item.Description,
		item.URL,
		item.Price,
		item.Notes,
		item.ImageURL,
		item.MaxClaims,
		item.UpdatedAt,
	).Scan(&item.WishListID, &item.Rank, &item.CreatedByID, &item.CreatedAt, &item.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("wish item with ID %d: %w", item.ID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update wish item: %w", err)
	}

	return item, nil
}

func (r *wishItemRepository) ShiftRanks(ctx context.Context, listID int64, from, to, delta int) error {
	query := `
		UPDATE wish_items
		SET rank = rank + $4
		WHERE wish_list_id = $1 AND rank BETWEEN $2 AND $3`

	if _, err := r.db.ExecContext(ctx, query, listID, from, to, delta); err != nil {
		return fmt.Errorf("failed to shift wish item ranks: %w", err)
	}
	return nil
}

func (r *wishItemRepository) SetRank(ctx context.Context, id int64, rank int) error {
	query := `UPDATE wish_items SET rank = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, rank, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set wish item rank: %w", err)
	}

	return rowsAffected(result, "wish item", id)
}

func (r *wishItemRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM wish_items WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete wish item: %w", err)
	}

	return rowsAffected(result, "wish item", id)
}

func (r *wishItemRepository) getOne(ctx context.Context, query string, id int64) (*models.WishItem, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wish item: %w", err)
	}
	return item, nil
}

func scanItem(row scanner) (*models.WishItem, error) {
	item := &models.WishItem{}
	err := row.Scan(
		&item.ID,
		&item.WishListID,
		&item.Title,
		&item.Description,
		&item.URL,
		&item.Price,
		&item.Notes,
		&item.ImageURL,
		&item.Rank,
		&item.MaxClaims,
		&item.CreatedByID,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
