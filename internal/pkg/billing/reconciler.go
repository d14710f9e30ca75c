package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ManuelReschke/OpsLedger/app/models"
)

// Reconcile upserts the subscription aggregate for one event and mirrors it
// onto the organization inside a single transaction. The aggregate is keyed
// by the Stripe subscription id, so replays update the same row.
func (s *Service) Reconcile(ctx context.Context, in ReconcileInput) (*ReconcileResult, error) {
	sub := in.Subscription
	if sub == nil || strings.TrimSpace(sub.ID) == "" {
		return nil, fmt.Errorf("%w: subscription id missing (event %s)", ErrInvalidEvent, in.Event.ID)
	}

	plan, err := s.resolvePlan(ctx, sub)
	if err != nil {
		log.Errorf("[Billing] plan lookup failed event=%s subscription=%s price=%s: %v",
			in.Event.ID, sub.ID, sub.FirstPriceID(), err)
		return nil, err
	}

	hasPaymentMethod := sub.HasPaymentMethod()
	status := s.mapper.Map(sub.Status, hasPaymentMethod)
	if in.StatusOverride != "" && !status.IsTerminal() {
		status = in.StatusOverride
	}
	periodEnd := sub.PeriodEnd(status)

	orgID := strings.TrimSpace(in.OrganizationID)
	if orgID == "" {
		orgID = sub.OrganizationID()
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		userID = sub.UserID()
	}

	snapshot := map[string]interface{}{
		"eventId":           in.Event.ID,
		"eventType":         in.Event.Type,
		"vendorStatus":      sub.Status,
		"cancelAtPeriodEnd": sub.CancelAtPeriodEnd,
		"hasPaymentMethod":  hasPaymentMethod,
	}
	if !in.Event.Created.IsZero() {
		snapshot["eventCreated"] = in.Event.Created.UTC().Format(time.RFC3339)
	}
	if plan != nil {
		snapshot["priceId"] = plan.PriceID
		snapshot["productId"] = plan.ProductID
	}
	metadata, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("%w: encode metadata: %v", ErrInvalidEvent, err)
	}

	result := &ReconcileResult{PeriodEnd: periodEnd}
	err = s.repo.WithinTransaction(ctx, func(tx Repository) error {
		existing, err := tx.GetSubscriptionByStripeID(ctx, sub.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return persistenceError("subscription", "get", in.Event.ID, sub.ID, orgID, err)
		}

		agg := &models.BillingSubscription{}
		if existing != nil {
			*agg = *existing
			result.PreviousStatus = existing.Status
			result.PreviousPlan = existing.PlanType
		} else {
			result.Created = true
			agg.StripeSubscriptionID = sub.ID
			agg.PlanType = models.PlanTypeStarter
			agg.BillingCycle = models.BillingCycleMonthly
			agg.Currency = s.defaultCurrency
			if userID != "" {
				agg.CreatedBy = &userID
			}
		}

		if id := strings.TrimSpace(sub.Customer.ID); id != "" {
			agg.StripeCustomerID = id
		}
		if orgID != "" {
			agg.OrganizationID = orgID
		}
		agg.Status = status
		if plan != nil {
			agg.PlanType = plan.PlanType
			agg.BillingCycle = plan.BillingCycle
			agg.Amount = plan.Amount
			agg.Currency = plan.Currency
		}
		switch {
		case sub.StartDate > 0:
			agg.StartsAt = time.Unix(sub.StartDate, 0).UTC()
		case agg.StartsAt.IsZero() && !in.Event.Created.IsZero():
			agg.StartsAt = in.Event.Created.UTC()
		case agg.StartsAt.IsZero():
			agg.StartsAt = time.Now().UTC()
		}
		if endsAt := sub.EndsAt(status); endsAt != nil {
			agg.EndsAt = endsAt
		}
		agg.Metadata = datatypes.JSON(metadata)
		agg.UpdatedAt = time.Now().UTC()

		if err := tx.UpsertSubscription(ctx, agg); err != nil {
			return persistenceError("subscription", "upsert", in.Event.ID, sub.ID, agg.OrganizationID, err)
		}
		result.Subscription = agg

		// The stored organization is kept on the aggregate but only an
		// organization named by this event is projected.
		if orgID == "" {
			log.Warnf("[Billing] no organization reference event=%s subscription=%s; projection skipped", in.Event.ID, sub.ID)
			return nil
		}
		org, err := tx.GetOrganization(ctx, agg.OrganizationID)
		if errors.Is(err, ErrOrganizationNotFound) {
			log.Warnf("[Billing] organization %s not found event=%s subscription=%s; projection skipped",
				agg.OrganizationID, in.Event.ID, sub.ID)
			return nil
		}
		if err != nil {
			return persistenceError("organization", "get", in.Event.ID, sub.ID, agg.OrganizationID, err)
		}

		startsAt := agg.StartsAt
		ProjectOrganization(org, Projection{
			Status:       agg.Status,
			PlanType:     agg.PlanType,
			BillingCycle: agg.BillingCycle,
			StartDate:    &startsAt,
			PeriodEnd:    periodEnd,
			Metadata:     agg.Metadata,
		})
		if err := tx.SaveOrganizationProjection(ctx, org); err != nil {
			return persistenceError("organization", "project", in.Event.ID, sub.ID, agg.OrganizationID, err)
		}
		result.Organization = org
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.CustomerEmail = firstNonEmpty(in.CustomerEmail, sub.Customer.Email)
	if result.CustomerEmail == "" && result.Organization != nil {
		result.CustomerEmail = result.Organization.BillingEmail
	}
	if result.CustomerEmail == "" {
		result.CustomerEmail = s.userEmail(ctx, firstNonEmpty(userID, ownerOf(result.Organization)))
	}

	log.Infof("[Billing] reconciled event=%s type=%s subscription=%s org=%s status=%s created=%t",
		in.Event.ID, in.Event.Type, sub.ID, result.Subscription.OrganizationID, result.Subscription.Status, result.Created)
	return result, nil
}

// resolvePlan reads plan details for the subscription's price, preferring the
// local catalog and falling back to the Stripe API. A subscription without a
// price yields nil details and no lookup.
func (s *Service) resolvePlan(ctx context.Context, sub *Subscription) (*PlanDetails, error) {
	priceID := sub.FirstPriceID()
	if priceID == "" {
		return nil, nil
	}

	if cached, err := s.repo.GetPrice(ctx, priceID); err == nil && cached.ProductName != "" {
		return &PlanDetails{
			PriceID:      cached.StripePriceID,
			ProductID:    cached.StripeProductID,
			PlanType:     cached.PlanType,
			BillingCycle: cached.BillingCycle,
			Amount:       cached.Amount,
			Currency:     normalizeCurrency(cached.Currency, s.defaultCurrency),
		}, nil
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warnf("[Billing] price catalog read failed price=%s: %v", priceID, err)
	}

	if s.vendor == nil {
		return nil, fmt.Errorf("%w: no vendor client for price %s", ErrVendorLookup, priceID)
	}
	price, err := s.vendor.GetPrice(ctx, priceID)
	if err != nil {
		if errors.Is(err, ErrVendorLookup) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: price %s: %v", ErrVendorLookup, priceID, err)
	}
	if price == nil {
		return nil, fmt.Errorf("%w: price %s not found", ErrVendorLookup, priceID)
	}
	return s.planFromPrice(price), nil
}

func (s *Service) planFromPrice(p *Price) *PlanDetails {
	currency := normalizeCurrency(p.Currency, s.defaultCurrency)
	return &PlanDetails{
		PriceID:      p.ID,
		ProductID:    p.ProductID,
		PlanType:     planTypeFromProductName(p.ProductName),
		BillingCycle: billingCycleFromInterval(p.Interval),
		Amount:       amountFromMinorUnits(p.UnitAmount, currency),
		Currency:     currency,
	}
}

func persistenceError(entity, op, eventID, subscriptionID, orgID string, err error) error {
	log.Errorf("[Billing] persistence failure entity=%s op=%s event=%s subscription=%s org=%s: %v",
		entity, op, eventID, subscriptionID, orgID, err)
	return fmt.Errorf("%w: %s %s: %v", ErrPersistence, op, entity, err)
}

// userEmail is the last email fallback. Lookup failures only cost the
// notification snapshot its email.
func (s *Service) userEmail(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		log.Debugf("[Billing] user %s lookup for email failed: %v", id, err)
		return ""
	}
	return user.Email
}

func ownerOf(org *models.Organization) string {
	if org == nil {
		return ""
	}
	return org.OwnerUserID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
