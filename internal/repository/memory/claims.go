package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Kerhoff/GiftboT/internal/models"
)

type claimRepo struct {
	run runner
	now func() time.Time
}

// Create enforces the same constraints as the SQL schema: one claim per
// (item, person) and never more claims than the item's max_claims.
func (r claimRepo) Create(ctx context.Context, claim *models.Claim) (*models.Claim, error) {
	err := r.run(func(st *state) error {
		item, ok := st.items[claim.ItemID]
		if !ok {
			return fmt.Errorf("wish item with ID %d: %w", claim.ItemID, models.ErrNotFound)
		}
		if _, ok := st.persons[claim.ClaimedByID]; !ok {
			return fmt.Errorf("person with ID %d: %w", claim.ClaimedByID, models.ErrNotFound)
		}
		key := claimKey{itemID: claim.ItemID, personID: claim.ClaimedByID}
		if _, exists := st.claims[key]; exists {
			return models.ErrAlreadyClaimed
		}
		if st.countClaims(claim.ItemID) >= item.MaxClaims {
			return models.ErrClaimLimitReached
		}
		st.nextClaimID++
		claim.ID = st.nextClaimID
		if claim.ClaimedAt.IsZero() {
			claim.ClaimedAt = r.now()
		}
		st.claims[key] = *claim
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

func (r claimRepo) Get(ctx context.Context, itemID, personID int64) (*models.Claim, error) {
	var out *models.Claim
	err := r.run(func(st *state) error {
		if c, ok := st.claims[claimKey{itemID: itemID, personID: personID}]; ok {
			out = &c
		}
		return nil
	})
	return out, err
}

func (r claimRepo) CountByItem(ctx context.Context, itemID int64) (int, error) {
	var n int
	err := r.run(func(st *state) error {
		n = st.countClaims(itemID)
		return nil
	})
	return n, err
}

func (r claimRepo) ListByItems(ctx context.Context, itemIDs []int64) ([]*models.Claim, error) {
	wanted := make(map[int64]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = struct{}{}
	}
	return r.filter(func(c models.Claim) bool {
		_, ok := wanted[c.ItemID]
		return ok
	})
}

func (r claimRepo) ListByClaimant(ctx context.Context, personID int64) ([]*models.Claim, error) {
	return r.filter(func(c models.Claim) bool { return c.ClaimedByID == personID })
}

func (r claimRepo) Delete(ctx context.Context, itemID, personID int64) error {
	return r.run(func(st *state) error {
		key := claimKey{itemID: itemID, personID: personID}
		if _, ok := st.claims[key]; !ok {
			return models.ErrNoSuchClaim
		}
		delete(st.claims, key)
		return nil
	})
}

func (r claimRepo) DeleteByItem(ctx context.Context, itemID int64) (int64, error) {
	return r.deleteWhere(func(k claimKey) bool { return k.itemID == itemID })
}

func (r claimRepo) DeleteByClaimant(ctx context.Context, personID int64) (int64, error) {
	return r.deleteWhere(func(k claimKey) bool { return k.personID == personID })
}

func (r claimRepo) deleteWhere(match func(claimKey) bool) (int64, error) {
	var n int64
	err := r.run(func(st *state) error {
		for key := range st.claims {
			if match(key) {
				delete(st.claims, key)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r claimRepo) filter(match func(models.Claim) bool) ([]*models.Claim, error) {
	var out []*models.Claim
	err := r.run(func(st *state) error {
		for _, c := range st.claims {
			if match(c) {
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (st *state) countClaims(itemID int64) int {
	n := 0
	for key := range st.claims {
		if key.itemID == itemID {
			n++
		}
	}
	return n
}
