package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository"
	"github.com/Kerhoff/GiftboT/internal/visibility"
)

// RenderOptions narrows a rendered list.
type RenderOptions struct {
	AvailableOnly bool
}

// RenderList returns the list as viewerID may see it. Every path that shows
// a list goes through here; admins get no extra claim information.
func (s *Service) RenderList(ctx context.Context, listID, viewerID int64, opts RenderOptions) (*models.ListView, error) {
	var view models.ListView
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		viewer, err := getActor(ctx, r, viewerID)
		if err != nil {
			return err
		}
		list, err := getList(ctx, r, listID)
		if err != nil {
			return err
		}
		owner, err := getPerson(ctx, r, list.OwnerID)
		if err != nil {
			return err
		}
		ownerSide := visibility.IsOwnerSide(owner, viewer.ID)
		if !owner.IsActive && !ownerSide && !viewer.IsAdmin {
			return fmt.Errorf("wish list %d: %w", listID, models.ErrNotFound)
		}

		items, err := r.Items().ListByList(ctx, list.ID)
		if err != nil {
			return fmt.Errorf("failed to load items: %w", err)
		}

		// The owner side never needs claims, so they are not even loaded.
		var claims []*models.Claim
		if !ownerSide {
			ids := make([]int64, 0, len(items))
			for _, it := range items {
				ids = append(ids, it.ID)
			}
			claims, err = r.Claims().ListByItems(ctx, ids)
			if err != nil {
				return fmt.Errorf("failed to load claims: %w", err)
			}
		}

		view = visibility.Project(visibility.Input{
			List:   list,
			Owner:  owner,
			Items:  items,
			Claims: claims,
		}, viewer.ID, visibility.Options{AvailableOnly: opts.AvailableOnly})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// AuditClaims is the explicit moderation path: it returns every claim on the
// list with the claimant resolved. Only active admins may use it, and never
// on a list they own or manage.
func (s *Service) AuditClaims(ctx context.Context, adminID, listID int64) ([]models.ClaimAudit, error) {
	var audit []models.ClaimAudit
	err := s.store.WithinTx(ctx, func(r repository.Repositories) error {
		admin, err := getAdmin(ctx, r, adminID)
		if err != nil {
			return err
		}
		list, err := getList(ctx, r, listID)
		if err != nil {
			return err
		}
		owner, err := getPerson(ctx, r, list.OwnerID)
		if err != nil {
			return err
		}
		if visibility.IsOwnerSide(owner, admin.ID) {
			return fmt.Errorf("cannot audit own list: %w", models.ErrForbidden)
		}

		items, err := r.Items().ListByList(ctx, list.ID)
		if err != nil {
			return fmt.Errorf("failed to load items: %w", err)
		}
		byID := make(map[int64]*models.WishItem, len(items))
		ids := make([]int64, 0, len(items))
		for _, it := range items {
			byID[it.ID] = it
			ids = append(ids, it.ID)
		}

		claims, err := r.Claims().ListByItems(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to load claims: %w", err)
		}
		for _, c := range claims {
			claimant, err := getPerson(ctx, r, c.ClaimedByID)
			if err != nil {
				return err
			}
			state := "active"
			if !claimant.IsActive {
				state = "archived"
			}
			audit = append(audit, models.ClaimAudit{
				ItemID:        c.ItemID,
				ItemTitle:     byID[c.ItemID].Title,
				ClaimantID:    claimant.ID,
				ClaimantName:  claimant.DisplayName,
				ClaimedAt:     c.ClaimedAt,
				ClaimantState: state,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"admin_id": adminID,
		"list_id":  listID,
		"claims":   len(audit),
	}).Warn("Claim audit performed")

	return audit, nil
}
