package billing

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/ManuelReschke/OpsLedger/app/models"
)

// ArchiveCancellation writes the audit record for a terminal cancellation.
// It runs after the aggregate and projection were written. An empty orgID
// stores a null organization.
func (s *Service) ArchiveCancellation(ctx context.Context, ev Event, sub *Subscription, orgID string) error {
	rec := newCancellationRecord(ev, sub, orgID)
	if err := s.repo.InsertCancellation(ctx, rec); err != nil {
		return persistenceError("cancellation", "insert", ev.ID, sub.ID, orgID, err)
	}
	log.Infof("[Billing] archived cancellation id=%s subscription=%s org=%s reason=%q", rec.ID, sub.ID, orgID, rec.Reason)
	return nil
}

func newCancellationRecord(ev Event, sub *Subscription, orgID string) *models.BillingCancellation {
	rec := &models.BillingCancellation{
		ID:       uuid.NewString(),
		StripeID: sub.ID,
		Reason:   strings.TrimSpace(sub.CancellationDetails.Reason),
		Feedback: strings.TrimSpace(sub.CancellationDetails.Feedback),
		Snapshot: datatypes.JSON(ev.Raw),
	}
	if rec.Reason == "" {
		rec.Reason = models.DefaultCancellationReason
	}
	if comment := strings.TrimSpace(sub.CancellationDetails.Comment); comment != "" {
		rec.Notes = &comment
	}
	// Replays of the same event hit the unique key. Events without an id
	// store null and are deduplicated upstream by payload hash.
	if eventID := strings.TrimSpace(ev.ID); eventID != "" {
		rec.StripeEventID = &eventID
	}
	if orgID = strings.TrimSpace(orgID); orgID != "" {
		rec.OrganizationID = &orgID
	}
	if sub.CanceledAt > 0 {
		rec.CanceledAt = unixPtr(sub.CanceledAt)
	}
	if sub.EndedAt > 0 {
		rec.EndedAt = unixPtr(sub.EndedAt)
	}
	if len(rec.Snapshot) == 0 {
		rec.Snapshot = datatypes.JSON(ev.Data)
	}
	return rec
}
