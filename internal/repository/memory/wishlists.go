package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Kerhoff/GiftboT/internal/models"
)

type listRepo struct {
	run runner
	now func() time.Time
}

func (r listRepo) Create(ctx context.Context, list *models.WishList) (*models.WishList, error) {
	err := r.run(func(st *state) error {
		if _, ok := st.persons[list.OwnerID]; !ok {
			return fmt.Errorf("owner %d: %w", list.OwnerID, models.ErrNotFound)
		}
		for _, l := range st.lists {
			if l.OwnerID == list.OwnerID {
				return fmt.Errorf("failed to create wish list: person %d already owns list %d", list.OwnerID, l.ID)
			}
		}
		st.nextListID++
		now := r.now()
		list.ID = st.nextListID
		list.CreatedAt = now
		list.UpdatedAt = now
		stored := *list
		stored.Items = nil
		st.lists[list.ID] = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r listRepo) GetByID(ctx context.Context, id int64) (*models.WishList, error) {
	var out *models.WishList
	err := r.run(func(st *state) error {
		if l, ok := st.lists[id]; ok {
			out = &l
		}
		return nil
	})
	return out, err
}

func (r listRepo) GetByOwner(ctx context.Context, ownerID int64) (*models.WishList, error) {
	var out *models.WishList
	err := r.run(func(st *state) error {
		for _, l := range st.lists {
			if l.OwnerID == ownerID {
				out = &l
				return nil
			}
		}
		return nil
	})
	return out, err
}

// Lock only checks existence; transactions are already serialized.
func (r listRepo) Lock(ctx context.Context, id int64) error {
	return r.run(func(st *state) error {
		if _, ok := st.lists[id]; !ok {
			return fmt.Errorf("wish list with ID %d: %w", id, models.ErrNotFound)
		}
		return nil
	})
}

func (r listRepo) Delete(ctx context.Context, id int64) error {
	return r.run(func(st *state) error {
		if _, ok := st.lists[id]; !ok {
			return fmt.Errorf("wish list with ID %d: %w", id, models.ErrNotFound)
		}
		st.deleteList(id)
		return nil
	})
}

func (st *state) deleteList(id int64) {
	for itemID, item := range st.items {
		if item.WishListID == id {
			st.deleteItem(itemID)
		}
	}
	delete(st.lists, id)
}

func (st *state) deleteItem(id int64) int64 {
	var removed int64
	for key := range st.claims {
		if key.itemID == id {
			delete(st.claims, key)
			removed++
		}
	}
	delete(st.items, id)
	return removed
}

type itemRepo struct {
	run runner
	now func() time.Time
}

func (r itemRepo) Create(ctx context.Context, item *models.WishItem) (*models.WishItem, error) {
	err := r.run(func(st *state) error {
		if _, ok := st.lists[item.WishListID]; !ok {
			return fmt.Errorf("wish list with ID %d: %w", item.WishListID, models.ErrNotFound)
		}
		maxRank := 0
		for _, existing := range st.items {
			if existing.WishListID == item.WishListID && existing.Rank > maxRank {
				maxRank = existing.Rank
			}
		}
		if item.MaxClaims < 1 {
			item.MaxClaims = models.DefaultMaxClaims
		}
		st.nextItemID++
		now := r.now()
		item.ID = st.nextItemID
		item.Rank = maxRank + 1
		item.CreatedAt = now
		item.UpdatedAt = now
		st.items[item.ID] = *item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r itemRepo) GetByID(ctx context.Context, id int64) (*models.WishItem, error) {
	var out *models.WishItem
	err := r.run(func(st *state) error {
		if item, ok := st.items[id]; ok {
			out = &item
		}
		return nil
	})
	return out, err
}

func (r itemRepo) GetForUpdate(ctx context.Context, id int64) (*models.WishItem, error) {
	return r.GetByID(ctx, id)
}

func (r itemRepo) ListByList(ctx context.Context, listID int64) ([]*models.WishItem, error) {
	var out []*models.WishItem
	err := r.run(func(st *state) error {
		for _, item := range st.items {
			if item.WishListID == listID {
				out = append(out, &item)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, err
}

func (r itemRepo) Update(ctx context.Context, item *models.WishItem) (*models.WishItem, error) {
	err := r.run(func(st *state) error {
		stored, ok := st.items[item.ID]
		if !ok {
			return fmt.Errorf("wish item with ID %d: %w", item.ID, models.ErrNotFound)
		}
		item.WishListID = stored.WishListID
		item.Rank = stored.Rank
		item.CreatedByID = stored.CreatedByID
		item.CreatedAt = stored.CreatedAt
		item.UpdatedAt = r.now()
		st.items[item.ID] = *item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r itemRepo) ShiftRanks(ctx context.Context, listID int64, from, to, delta int) error {
	return r.run(func(st *state) error {
		for id, item := range st.items {
			if item.WishListID == listID && item.Rank >= from && item.Rank <= to {
				item.Rank += delta
				st.items[id] = item
			}
		}
		return nil
	})
}

func (r itemRepo) SetRank(ctx context.Context, id int64, rank int) error {
	return r.run(func(st *state) error {
		item, ok := st.items[id]
		if !ok {
			return fmt.Errorf("wish item with ID %d: %w", id, models.ErrNotFound)
		}
		item.Rank = rank
		item.UpdatedAt = r.now()
		st.items[id] = item
		return nil
	})
}

func (r itemRepo) Delete(ctx context.Context, id int64) error {
	return r.run(func(st *state) error {
		if _, ok := st.items[id]; !ok {
			return fmt.Errorf("wish item with ID %d: %w", id, models.ErrNotFound)
		}
		st.deleteItem(id)
		return nil
	})
}
