package service

import (
	"context"
	"time"

	"github.com/Kerhoff/GiftboT/internal/repository"
)

// StartHousekeeping runs a background loop that clears expired invitation
// and password reset tokens and refreshes the membership gauges every interval. It blocks until
// the context is cancelled, so it should be launched in a separate goroutine.
func (s *Service) StartHousekeeping(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Housekeeping started")
	s.runHousekeeping(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Housekeeping stopped")
			return
		case <-ticker.C:
			s.runHousekeeping(ctx)
		}
	}
}

func (s *Service) runHousekeeping(ctx context.Context) {
	cleared, err := s.ClearExpiredTokens(ctx)
	if err != nil {
		s.logger.Errorf("Failed to clear expired tokens: %v", err)
	} else if cleared > 0 {
		s.logger.Infof("Cleared expired tokens of %d person(s)", cleared)
	}

	s.RefreshMetrics(ctx)
}

// ClearExpiredTokens drops invitation and password reset tokens whose expiry
// has passed.
func (s *Service) ClearExpiredTokens(ctx context.Context) (int64, error) {
	return s.store.Persons().ClearExpiredTokens(ctx, s.now())
}

// RefreshMetrics recomputes the membership gauges.
func (s *Service) RefreshMetrics(ctx context.Context) {
	persons, err := s.store.Persons().List(ctx, repository.PersonFilters{IncludeArchived: true})
	if err != nil {
		s.logger.Errorf("Failed to refresh membership metrics: %v", err)
		return
	}

	var active, archived, admins, children float64
	for _, p := range persons {
		if !p.IsActive {
			archived++
			continue
		}
		active++
		if p.IsAdmin {
			admins++
		}
		if p.IsChildProfile() {
			children++
		}
	}

	s.metrics.Persons.WithLabelValues("active").Set(active)
	s.metrics.Persons.WithLabelValues("archived").Set(archived)
	s.metrics.Persons.WithLabelValues("admin").Set(admins)
	s.metrics.Persons.WithLabelValues("child").Set(children)
}
