package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/GiftboT/internal/mailer"
	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository"
)

// Direction of an adjacent move.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// releasedClaim is a claim dropped by an item change whose holder should be
// told about it.
type releasedClaim struct {
	claimant  *models.Person
	itemTitle string
	ownerName string
}

// AddItem appends an item to the list at the lowest priority.
func (s *Service) AddItem(ctx context.Context, actorID, listID int64, draft models.ItemDraft) (*models.WishItem, error) {
	draft = draft.Trimmed()
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	s.fillPreview(ctx, &draft, "")

	var item *models.WishItem
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		actor, owner, list, err := s.authorizeList(ctx, r, actorID, listID)
		if err != nil {
			return err
		}
		if err := r.Lists().Lock(ctx, list.ID); err != nil {
			return err
		}

		item = &models.WishItem{WishListID: list.ID, CreatedByID: actor.ID}
		draft.ApplyTo(item)
		item, err = r.Items().Create(ctx, item)
		if err != nil {
			return fmt.Errorf("failed to add item to list of %d: %w", owner.ID, err)
		}
		return nil
	})
	s.metrics.ItemOps.WithLabelValues("add", resultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"item_id":  item.ID,
		"list_id":  listID,
		"actor_id": actorID,
	}).Info("Wish item added")

	return item, nil
}

// EditItem replaces the editable fields of an item. Its rank is kept. When
// max_claims drops below the number of existing claims, the newest claims are
// released and their holders notified, so the owner's response is the same
// whether or not anything was claimed.
func (s *Service) EditItem(ctx context.Context, actorID, itemID int64, draft models.ItemDraft) (*models.WishItem, error) {
	draft = draft.Trimmed()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	current, err := getItem(ctx, s.store, itemID, false)
	if err != nil {
		return nil, err
	}
	s.fillPreview(ctx, &draft, current.URL)

	var (
		item     *models.WishItem
		released []releasedClaim
	)
	err = s.store.WithinTx(ctx, func(r repository.Repositories) error {
		locked, err := getItem(ctx, r, itemID, true)
		if err != nil {
			return err
		}
		_, owner, _, err := s.authorizeList(ctx, r, actorID, locked.WishListID)
		if err != nil {
			return err
		}

		draft.ApplyTo(locked)
		item, err = r.Items().Update(ctx, locked)
		if err != nil {
			return fmt.Errorf("failed to update item: %w", err)
		}

		released, err = releaseOverLimit(ctx, r, item, owner)
		return err
	})
	s.metrics.ItemOps.WithLabelValues("edit", resultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"item_id":  itemID,
		"actor_id": actorID,
	}).Info("Wish item updated")
	s.notifyReleased(ctx, released)

	return item, nil
}

// DeleteItem removes the item and every claim on it, closes the rank gap
// and notifies the former claimers once the change is committed.
func (s *Service) DeleteItem(ctx context.Context, actorID, itemID int64) error {
	current, err := getItem(ctx, s.store, itemID, false)
	if err != nil {
		return err
	}

	var released []releasedClaim
	err = s.store.WithinTx(ctx, func(r repository.Repositories) error {
		_, owner, list, err := s.authorizeList(ctx, r, actorID, current.WishListID)
		if err != nil {
			return err
		}
		if err := r.Lists().Lock(ctx, list.ID); err != nil {
			return err
		}
		item, err := getItem(ctx, r, itemID, true)
		if err != nil {
			return err
		}

		claims, err := r.Claims().ListByItems(ctx, []int64{item.ID})
		if err != nil {
			return fmt.Errorf("failed to load claims: %w", err)
		}
		for _, c := range claims {
			claimant, err := getPerson(ctx, r, c.ClaimedByID)
			if err != nil {
				return err
			}
			released = append(released, releasedClaim{claimant: claimant, itemTitle: item.Title, ownerName: owner.DisplayName})
		}

		if _, err := r.Claims().DeleteByItem(ctx, item.ID); err != nil {
			return fmt.Errorf("failed to delete claims: %w", err)
		}
		if err := r.Items().Delete(ctx, item.ID); err != nil {
			return err
		}
		if err := r.Items().ShiftRanks(ctx, list.ID, item.Rank+1, math.MaxInt32, -1); err != nil {
			return err
		}
		return nil
	})
	s.metrics.ItemOps.WithLabelValues("delete", resultLabel(err)).Inc()
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"item_id":  itemID,
		"actor_id": actorID,
	}).Info("Wish item deleted")
	s.notifyReleased(ctx, released)

	return nil
}

// ReorderItem moves the item to newRank. Only the items between the old and
// the new rank shift, by one position each.
func (s *Service) ReorderItem(ctx context.Context, actorID, listID, itemID int64, newRank int) error {
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		if _, _, _, err := s.authorizeList(ctx, r, actorID, listID); err != nil {
			return err
		}
		return reorder(ctx, r, listID, itemID, func(int, int) int { return newRank })
	})
	s.metrics.ItemOps.WithLabelValues("reorder", resultLabel(err)).Inc()
	return err
}

// MoveItem swaps the item with its neighbour. Moving the first item up or
// the last item down changes nothing.
func (s *Service) MoveItem(ctx context.Context, actorID, itemID int64, dir Direction) error {
	if dir != Up && dir != Down {
		return fmt.Errorf("unknown direction %q: %w", dir, models.ErrInvalidInput)
	}

	current, err := getItem(ctx, s.store, itemID, false)
	if err != nil {
		return err
	}

	err = s.store.WithinTx(ctx, func(r repository.Repositories) error {
		if _, _, _, err := s.authorizeList(ctx, r, actorID, current.WishListID); err != nil {
			return err
		}
		return reorder(ctx, r, current.WishListID, itemID, func(rank, count int) int {
			if dir == Up && rank > 1 {
				return rank - 1
			}
			if dir == Down && rank < count {
				return rank + 1
			}
			return rank
		})
	})
	s.metrics.ItemOps.WithLabelValues("move", resultLabel(err)).Inc()
	return err
}

// reorder locks the list and moves one item to the rank chosen by target,
// which receives the item's current rank and the number of items.
func reorder(ctx context.Context, r repository.Repositories, listID, itemID int64, target func(rank, count int) int) error {
	if err := r.Lists().Lock(ctx, listID); err != nil {
		return err
	}
	items, err := r.Items().ListByList(ctx, listID)
	if err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}

	var moving *models.WishItem
	for _, it := range items {
		if it.ID == itemID {
			moving = it
			break
		}
	}
	if moving == nil {
		return fmt.Errorf("wish item %d in list %d: %w", itemID, listID, models.ErrNotFound)
	}

	oldRank := moving.Rank
	newRank := target(oldRank, len(items))
	if newRank < 1 || newRank > len(items) {
		return fmt.Errorf("rank %d not in 1..%d: %w", newRank, len(items), models.ErrInvalidRank)
	}

	switch {
	case newRank == oldRank:
		return nil
	case newRank < oldRank:
		err = r.Items().ShiftRanks(ctx, listID, newRank, oldRank-1, 1)
	default:
		err = r.Items().ShiftRanks(ctx, listID, oldRank+1, newRank, -1)
	}
	if err != nil {
		return err
	}
	return r.Items().SetRank(ctx, itemID, newRank)
}

// authorizeList loads the list, its owner and the actor, and checks that the
// actor may change the list.
func (s *Service) authorizeList(ctx context.Context, r repository.Repositories, actorID, listID int64) (*models.Person, *models.Person, *models.WishList, error) {
	actor, err := getActor(ctx, r, actorID)
	if err != nil {
		return nil, nil, nil, err
	}
	list, err := getList(ctx, r, listID)
	if err != nil {
		return nil, nil, nil, err
	}
	owner, err := getPerson(ctx, r, list.OwnerID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !canManage(actor, owner) {
		return nil, nil, nil, fmt.Errorf("person %d cannot change list %d: %w", actorID, listID, models.ErrForbidden)
	}
	return actor, owner, list, nil
}

// releaseOverLimit drops the newest claims exceeding the item's max_claims.
func releaseOverLimit(ctx context.Context, r repository.Repositories, item *models.WishItem, owner *models.Person) ([]releasedClaim, error) {
	claims, err := r.Claims().ListByItems(ctx, []int64{item.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to load claims: %w", err)
	}
	if len(claims) <= item.MaxClaims {
		return nil, nil
	}

	sort.Slice(claims, func(i, j int) bool {
		if claims[i].ClaimedAt.Equal(claims[j].ClaimedAt) {
			return claims[i].ID < claims[j].ID
		}
		return claims[i].ClaimedAt.Before(claims[j].ClaimedAt)
	})

	var released []releasedClaim
	for _, c := range claims[item.MaxClaims:] {
		claimant, err := getPerson(ctx, r, c.ClaimedByID)
		if err != nil {
			return nil, err
		}
		if err := r.Claims().Delete(ctx, c.ItemID, c.ClaimedByID); err != nil {
			return nil, fmt.Errorf("failed to release claim: %w", err)
		}
		released = append(released, releasedClaim{claimant: claimant, itemTitle: item.Title, ownerName: owner.DisplayName})
	}
	return released, nil
}

// notifyReleased mails every former claimer. Failures are aggregated and
// logged; the item change itself has already been committed.
func (s *Service) notifyReleased(ctx context.Context, released []releasedClaim) {
	var result *multierror.Error
	for _, rc := range released {
		to := rc.claimant.DeliveryEmail()
		if to == "" || !rc.claimant.IsActive {
			continue
		}
		err := s.mailer.SendItemRemoved(ctx, mailer.ItemRemoved{
			Email:     to,
			Name:      rc.claimant.DisplayName,
			ItemTitle: rc.itemTitle,
			OwnerName: rc.ownerName,
		})
		if err != nil {
			s.metrics.MailFailure.WithLabelValues("item_removed").Inc()
			result = multierror.Append(result, fmt.Errorf("person %d: %w", rc.claimant.ID, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		s.logger.WithError(err).Warn("Failed to notify some claimers")
	}
}

// fillPreview looks up a thumbnail when the draft has a URL but no image.
// previousURL suppresses the lookup when an edit keeps the same page.
func (s *Service) fillPreview(ctx context.Context, draft *models.ItemDraft, previousURL string) {
	if s.preview == nil || draft.URL == "" || draft.ImageURL != "" {
		return
	}
	if previousURL != "" && previousURL == draft.URL {
		return
	}
	draft.ImageURL = s.preview.FetchImage(ctx, draft.URL)
}
