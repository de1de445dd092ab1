package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Kerhoff/GiftboT/internal/models"
)

// Metrics are the service's Prometheus collectors.
type Metrics struct {
	Claims      *prometheus.CounterVec
	Lifecycle   *prometheus.CounterVec
	ItemOps     *prometheus.CounterVec
	MailFailure *prometheus.CounterVec
	Persons     *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg. A nil
// registerer leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Claims: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftbot",
			Name:      "claim_operations_total",
			Help:      "Claim and unclaim attempts by outcome.",
		}, []string{"operation", "result"}),
		Lifecycle: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftbot",
			Name:      "lifecycle_transitions_total",
			Help:      "Archive, restore, promote and delete attempts by outcome.",
		}, []string{"transition", "result"}),
		ItemOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftbot",
			Name:      "item_operations_total",
			Help:      "Wish item changes by operation and outcome.",
		}, []string{"operation", "result"}),
		MailFailure: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftbot",
			Name:      "mail_failures_total",
			Help:      "Notifications that could not be delivered.",
		}, []string{"kind"}),
		Persons: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "giftbot",
			Name:      "persons",
			Help:      "Persons by membership state.",
		}, []string{"state"}),
	}
}

var resultLabels = []struct {
	err   error
	label string
}{
	{models.ErrSelfClaimForbidden, "self_claim_forbidden"},
	{models.ErrAlreadyClaimed, "already_claimed"},
	{models.ErrClaimLimitReached, "claim_limit_reached"},
	{models.ErrNoSuchClaim, "no_such_claim"},
	{models.ErrHasActiveDependents, "has_active_dependents"},
	{models.ErrLastAdminProtected, "last_admin_protected"},
	{models.ErrAlreadyArchived, "already_archived"},
	{models.ErrNotArchived, "not_archived"},
	{models.ErrEmailInUse, "email_in_use"},
	{models.ErrNotAChildProfile, "not_a_child_profile"},
	{models.ErrAlreadyPromoted, "already_promoted"},
	{models.ErrInvitationExpired, "invitation_expired"},
	{models.ErrResetTokenExpired, "reset_token_expired"},
	{models.ErrInvalidCredential, "invalid_credential"},
	{models.ErrConfirmationMismatch, "confirmation_mismatch"},
	{models.ErrManagerArchived, "manager_archived"},
	{models.ErrInvalidRank, "invalid_rank"},
	{models.ErrInvalidInput, "invalid_input"},
	{models.ErrForbidden, "forbidden"},
	{models.ErrNotFound, "not_found"},
}

// resultLabel keeps the label set bounded: every domain error has a fixed
// label and anything else is "error".
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	for _, r := range resultLabels {
		if errors.Is(err, r.err) {
			return r.label
		}
	}
	return "error"
}
