package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository"
	"github.com/Kerhoff/GiftboT/internal/visibility"
)

// Claim records that viewerID intends to buy the item. The checks run in
// order: own list, duplicate claim, claim limit. The item row stays locked
// until commit, and the store enforces the same constraints, so concurrent
// claims on the last free slot cannot both succeed.
func (s *Service) Claim(ctx context.Context, itemID, viewerID int64) (*models.Claim, error) {
	var claim *models.Claim
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		claimant, err := getActor(ctx, r, viewerID)
		if err != nil {
			return err
		}
		item, err := getItem(ctx, r, itemID, true)
		if err != nil {
			return err
		}
		list, err := getList(ctx, r, item.WishListID)
		if err != nil {
			return err
		}
		owner, err := getPerson(ctx, r, list.OwnerID)
		if err != nil {
			return err
		}

		if visibility.IsOwnerSide(owner, claimant.ID) {
			return models.ErrSelfClaimForbidden
		}
		if !owner.IsActive {
			return fmt.Errorf("list owner %d is archived: %w", owner.ID, models.ErrForbidden)
		}

		existing, err := r.Claims().Get(ctx, item.ID, claimant.ID)
		if err != nil {
			return fmt.Errorf("failed to check existing claim: %w", err)
		}
		if existing != nil {
			return models.ErrAlreadyClaimed
		}

		count, err := r.Claims().CountByItem(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("failed to count claims: %w", err)
		}
		if count >= item.MaxClaims {
			return models.ErrClaimLimitReached
		}

		claim, err = r.Claims().Create(ctx, &models.Claim{
			ItemID:      item.ID,
			ClaimedByID: claimant.ID,
			ClaimedAt:   s.now(),
		})
		return err
	})
	s.metrics.Claims.WithLabelValues("claim", resultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"item_id":  itemID,
		"claim_id": claim.ID,
	}).Debug("Item claimed")

	return claim, nil
}

// Unclaim removes viewerID's claim on the item.
func (s *Service) Unclaim(ctx context.Context, itemID, viewerID int64) error {
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		if _, err := getItem(ctx, r, itemID, true); err != nil {
			return err
		}
		return r.Claims().Delete(ctx, itemID, viewerID)
	})
	s.metrics.Claims.WithLabelValues("unclaim", resultLabel(err)).Inc()
	if err != nil {
		return err
	}

	s.logger.WithField("item_id", itemID).Debug("Item unclaimed")
	return nil
}

// MyClaims lists the items viewerID has claimed, across all lists.
func (s *Service) MyClaims(ctx context.Context, viewerID int64) ([]*models.WishItem, error) {
	var items []*models.WishItem
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		if _, err := getActor(ctx, r, viewerID); err != nil {
			return err
		}
		claims, err := r.Claims().ListByClaimant(ctx, viewerID)
		if err != nil {
			return fmt.Errorf("failed to load claims: %w", err)
		}
		for _, c := range claims {
			item, err := getItem(ctx, r, c.ItemID, false)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return nil
	})
	return items, err
}
