package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository"
)

type claimRepository struct {
	db dbtx
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db dbtx) repository.ClaimRepository {
	return &claimRepository{db: db}
}

func (r *claimRepository) Create(ctx context.Context, claim *models.Claim) (*models.Claim, error) {
	query := `
		INSERT INTO claims (item_id, claimed_by_id, claimed_at)
		VALUES ($1, $2, $3)
		RETURNING id, claimed_at`

	if claim.ClaimedAt.IsZero() {
		claim.ClaimedAt = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query,
		claim.ItemID,
		claim.ClaimedByID,
		claim.ClaimedAt,
	).Scan(&claim.ID, &claim.ClaimedAt)

	if err != nil {
		if mapped := mapError(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to create claim: %w", err)
	}

	return claim, nil
}

func (r *claimRepository) Get(ctx context.Context, itemID, personID int64) (*models.Claim, error) {
	query := `
		SELECT id, item_id, claimed_by_id, claimed_at
		FROM claims
		WHERE item_id = $1 AND claimed_by_id = $2`

	claim := &models.Claim{}
	err := r.db.QueryRowContext(ctx, query, itemID, personID).Scan(
		&claim.ID,
		&claim.ItemID,
		&claim.ClaimedByID,
		&claim.ClaimedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	return claim, nil
}

func (r *claimRepository) CountByItem(ctx context.Context, itemID int64) (int, error) {
	query := `SELECT COUNT(*) FROM claims WHERE item_id = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, itemID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count claims: %w", err)
	}
	return count, nil
}

func (r *claimRepository) ListByItems(ctx context.Context, itemIDs []int64) ([]*models.Claim, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, item_id, claimed_by_id, claimed_at
		FROM claims
		WHERE item_id = ANY($1)
		ORDER BY id ASC`

	return r.list(ctx, query, pq.Array(itemIDs))
}

func (r *claimRepository) ListByClaimant(ctx context.Context, personID int64) ([]*models.Claim, error) {
	query := `
		SELECT id, item_id, claimed_by_id, claimed_at
		FROM claims
		WHERE claimed_by_id = $1
		ORDER BY id ASC`

	return r.list(ctx, query, personID)
}

func (r *claimRepository) Delete(ctx context.Context, itemID, personID int64) error {
	query := `DELETE FROM claims WHERE item_id = $1 AND claimed_by_id = $2`

	result, err := r.db.ExecContext(ctx, query, itemID, personID)
	if err != nil {
		return fmt.Errorf("failed to delete claim: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrNoSuchClaim
	}

	return nil
}

func (r *claimRepository) DeleteByItem(ctx context.Context, itemID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM claims WHERE item_id = $1`, itemID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete claims by item: %w", err)
	}
	return result.RowsAffected()
}

func (r *claimRepository) DeleteByClaimant(ctx context.Context, personID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM claims WHERE claimed_by_id = $1`, personID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete claims by claimant: %w", err)
	}
	return result.RowsAffected()
}

func (r *claimRepository) list(ctx context.Context, query string, arg any) ([]*models.Claim, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	var claims []*models.Claim
	for rows.Next() {
		claim := &models.Claim{}
		if err := rows.Scan(
			&claim.ID,
			&claim.ItemID,
			&claim.ClaimedByID,
			&claim.ClaimedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}

	return claims, rows.Err()
}
