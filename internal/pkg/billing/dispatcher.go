package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/OpsLedger/app/models"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/notify"
)

// Stripe event types handled by Dispatch.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionPaused       = "customer.subscription.paused"
	EventSubscriptionResumed      = "customer.subscription.resumed"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventSubscriptionTrialWillEnd = "customer.subscription.trial_will_end"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
	EventInvoiceOverdue           = "invoice.overdue"
	eventPrefixProduct            = "product."
	eventPrefixPrice              = "price."
	checkoutModeSubscription      = "subscription"
	billingSettingsPath           = "/settings/billing"
)

// Dispatch routes a verified event to its handler. Unknown types are logged
// and acknowledged without writes.
func (s *Service) Dispatch(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventCheckoutSessionCompleted:
		return s.handleCheckoutCompleted(ctx, ev)
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionPaused, EventSubscriptionResumed:
		return s.handleSubscriptionChanged(ctx, ev)
	case EventSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, ev)
	case EventSubscriptionTrialWillEnd:
		return s.handleTrialWillEnd(ctx, ev)
	case EventInvoicePaymentFailed:
		return s.handleInvoiceProblem(ctx, ev, notify.AlertPaymentFailed)
	case EventInvoiceOverdue:
		return s.handleInvoiceProblem(ctx, ev, notify.AlertPastDue)
	}

	if strings.HasPrefix(ev.Type, eventPrefixProduct) || strings.HasPrefix(ev.Type, eventPrefixPrice) {
		return s.SyncCatalog(ctx, ev)
	}

	log.Infof("[Billing] ignoring event type=%s id=%s", ev.Type, ev.ID)
	return nil
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, ev Event) error {
	var session CheckoutSession
	if err := decodeObject(ev, &session); err != nil {
		return err
	}
	if session.Mode != checkoutModeSubscription || session.Subscription.ID == "" {
		log.Infof("[Billing] checkout %s is not a subscription checkout (mode=%s); skipped", session.ID, session.Mode)
		return nil
	}
	if s.vendor == nil {
		return fmt.Errorf("%w: no vendor client for subscription %s", ErrVendorLookup, session.Subscription.ID)
	}

	sub, err := s.vendor.GetSubscription(ctx, session.Subscription.ID)
	if err != nil {
		log.Errorf("[Billing] checkout %s: %v", session.ID, err)
		return err
	}

	res, err := s.Reconcile(ctx, ReconcileInput{
		Event:          ev,
		Subscription:   sub,
		OrganizationID: firstNonEmpty(sub.OrganizationID(), metadataValue(session.Metadata, organizationMetadataKeys...), session.ClientReferenceID),
		UserID:         firstNonEmpty(metadataValue(session.Metadata, userMetadataKeys...), sub.UserID()),
		CustomerEmail:  session.Email(),
	})
	if err != nil {
		return err
	}
	s.notifyChange(ctx, ev, res)
	return nil
}

// withInvoicePaymentMethod re-reads the subscription from Stripe when its
// status mapping hinges on a payment method that may sit on the unexpanded
// latest invoice. Lookup failures abort the event.
func (s *Service) withInvoicePaymentMethod(ctx context.Context, sub *Subscription) (*Subscription, error) {
	if !sub.InvoicePaymentMethodUnknown() || s.mapper.Map(sub.Status, true) == s.mapper.Map(sub.Status, false) {
		return sub, nil
	}
	if s.vendor == nil {
		return nil, fmt.Errorf("%w: no vendor client for subscription %s", ErrVendorLookup, sub.ID)
	}
	fresh, err := s.vendor.GetSubscription(ctx, sub.ID)
	if err != nil {
		log.Errorf("[Billing] refresh subscription %s for payment method: %v", sub.ID, err)
		return nil, err
	}
	return fresh, nil
}

func (s *Service) handleSubscriptionChanged(ctx context.Context, ev Event) error {
	var payload Subscription
	if err := decodeObject(ev, &payload); err != nil {
		return err
	}
	sub, err := s.withInvoicePaymentMethod(ctx, &payload)
	if err != nil {
		return err
	}
	res, err := s.Reconcile(ctx, ReconcileInput{Event: ev, Subscription: sub})
	if err != nil {
		return err
	}
	s.notifyChange(ctx, ev, res)
	return nil
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, ev Event) error {
	var sub Subscription
	if err := decodeObject(ev, &sub); err != nil {
		return err
	}
	current, err := s.withInvoicePaymentMethod(ctx, &sub)
	if err != nil {
		return err
	}
	res, err := s.Reconcile(ctx, ReconcileInput{Event: ev, Subscription: current})
	if err != nil {
		return err
	}
	if err := s.ArchiveCancellation(ctx, ev, &sub, res.Subscription.OrganizationID); err != nil {
		return err
	}

	alert := s.alertFor(notify.AlertSubscriptionCancelled, ev, res)
	alert.Reason = sub.CancellationDetails.Reason
	alert.Comment = sub.CancellationDetails.Comment
	s.notifier.Alert(ctx, alert)
	return nil
}

func (s *Service) handleTrialWillEnd(ctx context.Context, ev Event) error {
	var payload Subscription
	if err := decodeObject(ev, &payload); err != nil {
		return err
	}
	sub, err := s.withInvoicePaymentMethod(ctx, &payload)
	if err != nil {
		return err
	}
	res, err := s.Reconcile(ctx, ReconcileInput{Event: ev, Subscription: sub})
	if err != nil {
		return err
	}

	trialEnd := unixPtr(sub.TrialEnd)
	if sub.TrialEnd <= 0 {
		trialEnd = res.PeriodEnd
	}
	message := "Your trial ends soon. Add a payment method to keep access."
	if trialEnd != nil {
		message = fmt.Sprintf("Your trial ends on %s. Add a payment method to keep access.", trialEnd.Format("January 2, 2006"))
	}
	s.userNotice(ctx, res, notify.UserNotice{
		Type:      models.NotificationTypeTrialReminder,
		Title:     "Your trial is ending soon",
		Message:   message,
		ActionURL: billingSettingsPath,
		ExpiresAt: trialEnd,
	})
	s.notifier.Alert(ctx, s.alertFor(notify.AlertTrialEnding, ev, res))
	return nil
}

// handleInvoiceProblem covers failed and overdue invoices. Both re-read the
// subscription from Stripe since the invoice only names it.
func (s *Service) handleInvoiceProblem(ctx context.Context, ev Event, kind string) error {
	var inv Invoice
	if err := decodeObject(ev, &inv); err != nil {
		return err
	}
	subID := inv.SubscriptionID()
	if subID == "" {
		log.Infof("[Billing] invoice %s has no subscription; %s skipped", inv.ID, ev.Type)
		return nil
	}
	if s.vendor == nil {
		return fmt.Errorf("%w: no vendor client for subscription %s", ErrVendorLookup, subID)
	}
	sub, err := s.vendor.GetSubscription(ctx, subID)
	if err != nil {
		log.Errorf("[Billing] invoice %s: %v", inv.ID, err)
		return err
	}

	in := ReconcileInput{Event: ev, Subscription: sub, CustomerEmail: inv.CustomerEmail}
	notice := notify.UserNotice{
		Type:      models.NotificationTypeError,
		Title:     "Payment failed",
		Message:   "We could not charge your payment method. Please update it to keep your subscription.",
		ActionURL: firstNonEmpty(inv.HostedURL, billingSettingsPath),
		Metadata:  map[string]interface{}{"invoiceId": inv.ID, "attemptCount": inv.AttemptCount},
	}
	if kind == notify.AlertPastDue {
		in.StatusOverride = models.SubscriptionStatusPastDue
		notice.Type = models.NotificationTypeWarning
		notice.Title = "Invoice overdue"
		notice.Message = "An invoice for your subscription is overdue. Please pay it to avoid losing access."
	}

	res, err := s.Reconcile(ctx, in)
	if err != nil {
		return err
	}
	s.userNotice(ctx, res, notice)
	s.notifier.Alert(ctx, s.alertFor(kind, ev, res))
	return nil
}

// notifyChange alerts on new subscriptions and on status or plan moves.
func (s *Service) notifyChange(ctx context.Context, ev Event, res *ReconcileResult) {
	switch {
	case res.Created:
		s.notifier.Alert(ctx, s.alertFor(notify.AlertSubscriptionCreated, ev, res))
	case res.Changed():
		s.notifier.Alert(ctx, s.alertFor(notify.AlertSubscriptionUpdated, ev, res))
	}
}

func (s *Service) alertFor(kind string, ev Event, res *ReconcileResult) notify.Alert {
	agg := res.Subscription
	a := notify.Alert{
		Kind:           kind,
		EventID:        ev.ID,
		OrganizationID: agg.OrganizationID,
		UserEmail:      res.CustomerEmail,
		SubscriptionID: agg.StripeSubscriptionID,
		PlanType:       agg.PlanType,
		BillingCycle:   agg.BillingCycle,
		Amount:         agg.Amount,
		Currency:       agg.Currency,
		Status:         string(agg.Status),
		PreviousStatus: string(res.PreviousStatus),
		OccurredAt:     ev.Created,
	}
	if res.Organization != nil {
		a.OrganizationName = res.Organization.Name
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now().UTC()
	}
	return a
}

// userNotice addresses n to the organization owner, falling back to the user
// who started the subscription. Notices need a known organization.
func (s *Service) userNotice(ctx context.Context, res *ReconcileResult, n notify.UserNotice) {
	agg := res.Subscription
	if agg.OrganizationID == "" {
		log.Warnf("[Billing] notice %s for subscription %s dropped: no organization", n.Type, agg.StripeSubscriptionID)
		return
	}
	n.OrganizationID = agg.OrganizationID
	if res.Organization != nil {
		n.UserID = res.Organization.OwnerUserID
	}
	if n.UserID == "" && agg.CreatedBy != nil {
		n.UserID = *agg.CreatedBy
	}
	if n.Metadata == nil {
		n.Metadata = map[string]interface{}{}
	}
	n.Metadata["subscriptionId"] = agg.StripeSubscriptionID
	s.notifier.UserNotice(ctx, n)
}

func decodeObject(ev Event, v interface{}) error {
	if len(ev.Data) == 0 {
		return fmt.Errorf("%w: %s %s has no data object", ErrInvalidEvent, ev.Type, ev.ID)
	}
	if err := json.Unmarshal(ev.Data, v); err != nil {
		log.Errorf("[Billing] decode %s %s: %v", ev.Type, ev.ID, err)
		return fmt.Errorf("%w: %s %s: %v", ErrInvalidEvent, ev.Type, ev.ID, err)
	}
	return nil
}
