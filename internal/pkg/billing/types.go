package billing

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/OpsLedger/app/models"
)

// Event is a verified webhook delivery reduced to what dispatch needs.
type Event struct {
	ID      string
	Type    string
	Created time.Time
	Data    json.RawMessage // the event's data.object
	Raw     []byte          // full signed payload, kept for audit snapshots
}

// Metadata keys Stripe echoes back from checkout/subscription creation.
var (
	organizationMetadataKeys = []string{"organizationId", "organization_id", "orgId", "org_id"}
	userMetadataKeys         = []string{"userId", "user_id", "createdBy"}
)

// stripeRef decodes an expandable Stripe field: either an id string or an
// expanded object carrying at least an id.
type stripeRef struct {
	ID    string
	Email string
	Name  string
}

func (r *stripeRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &r.ID)
	}
	var obj struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	r.ID, r.Email, r.Name = obj.ID, obj.Email, obj.Name
	return nil
}

// invoiceRef is an expandable invoice; only the payment method matters here.
// Expanded is false when the payload carried the bare invoice id.
type invoiceRef struct {
	ID                   string
	DefaultPaymentMethod stripeRef
	Expanded             bool
}

func (r *invoiceRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &r.ID)
	}
	var obj struct {
		ID                   string    `json:"id"`
		DefaultPaymentMethod stripeRef `json:"default_payment_method"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	r.ID, r.DefaultPaymentMethod, r.Expanded = obj.ID, obj.DefaultPaymentMethod, true
	return nil
}

// CancellationDetails is what the customer told Stripe when cancelling.
type CancellationDetails struct {
	Reason   string `json:"reason"`
	Comment  string `json:"comment"`
	Feedback string `json:"feedback"`
}

// SubscriptionItem is one line of a subscription.
type SubscriptionItem struct {
	Price struct {
		ID      string    `json:"id"`
		Product stripeRef `json:"product"`
	} `json:"price"`
	CurrentPeriodStart int64 `json:"current_period_start"`
	CurrentPeriodEnd   int64 `json:"current_period_end"`
}

// Subscription is the subset of a Stripe subscription object used for
// reconciliation. It decodes both webhook payloads and API responses.
type Subscription struct {
	ID                   string              `json:"id"`
	Customer             stripeRef           `json:"customer"`
	Status               string              `json:"status"`
	CancelAtPeriodEnd    bool                `json:"cancel_at_period_end"`
	StartDate            int64               `json:"start_date"`
	TrialEnd             int64               `json:"trial_end"`
	CanceledAt           int64               `json:"canceled_at"`
	EndedAt              int64               `json:"ended_at"`
	CurrentPeriodEnd     int64               `json:"current_period_end"` // API versions before 2025-03-31
	DefaultPaymentMethod stripeRef           `json:"default_payment_method"`
	LatestInvoice        invoiceRef          `json:"latest_invoice"`
	CancellationDetails  CancellationDetails `json:"cancellation_details"`
	Metadata             map[string]string   `json:"metadata"`
	Items                struct {
		Data []SubscriptionItem `json:"data"`
	} `json:"items"`
}

// FirstPriceID returns the price on the first subscription item.
func (s *Subscription) FirstPriceID() string {
	for _, item := range s.Items.Data {
		if id := strings.TrimSpace(item.Price.ID); id != "" {
			return id
		}
	}
	return ""
}

// HasPaymentMethod is true when a default payment method is set on the
// subscription or on its latest invoice.
func (s *Subscription) HasPaymentMethod() bool {
	return s.DefaultPaymentMethod.ID != "" || s.LatestInvoice.DefaultPaymentMethod.ID != ""
}

// InvoicePaymentMethodUnknown is true when no payment method is visible and
// the latest invoice, which may carry one, was not expanded.
func (s *Subscription) InvoicePaymentMethodUnknown() bool {
	return !s.HasPaymentMethod() && s.LatestInvoice.ID != "" && !s.LatestInvoice.Expanded
}

// OrganizationID resolves the tenant reference echoed back in metadata.
func (s *Subscription) OrganizationID() string {
	return metadataValue(s.Metadata, organizationMetadataKeys...)
}

// UserID resolves the originating user echoed back in metadata.
func (s *Subscription) UserID() string {
	return metadataValue(s.Metadata, userMetadataKeys...)
}

// PeriodEnd is the end of the current billing period. For trials the trial
// end wins since that is when the first charge happens.
func (s *Subscription) PeriodEnd(status models.SubscriptionStatus) *time.Time {
	if status == models.SubscriptionStatusTrial && s.TrialEnd > 0 {
		return unixPtr(s.TrialEnd)
	}
	for _, item := range s.Items.Data {
		if item.CurrentPeriodEnd > 0 {
			return unixPtr(item.CurrentPeriodEnd)
		}
	}
	if s.CurrentPeriodEnd > 0 {
		return unixPtr(s.CurrentPeriodEnd)
	}
	return nil
}

// EndsAt is the period end, or the moment the subscription ended if it did.
func (s *Subscription) EndsAt(status models.SubscriptionStatus) *time.Time {
	if s.EndedAt > 0 {
		return unixPtr(s.EndedAt)
	}
	return s.PeriodEnd(status)
}

// CheckoutSession is the subset of checkout.session objects used to start
// a subscription.
type CheckoutSession struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Customer          stripeRef         `json:"customer"`
	Subscription      stripeRef         `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	CustomerEmail     string            `json:"customer_email"`
	Metadata          map[string]string `json:"metadata"`
	CustomerDetails   struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

func (c *CheckoutSession) Email() string {
	if e := strings.TrimSpace(c.CustomerDetails.Email); e != "" {
		return e
	}
	return strings.TrimSpace(c.CustomerEmail)
}

// Invoice is the subset of invoice objects used by payment events.
type Invoice struct {
	ID            string    `json:"id"`
	Customer      stripeRef `json:"customer"`
	CustomerEmail string    `json:"customer_email"`
	Subscription  stripeRef `json:"subscription"`
	AmountDue     int64     `json:"amount_due"`
	Currency      string    `json:"currency"`
	AttemptCount  int64     `json:"attempt_count"`
	HostedURL     string    `json:"hosted_invoice_url"`
	Parent        struct {
		SubscriptionDetails struct {
			Subscription stripeRef `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// SubscriptionID handles both the legacy top-level field and the
// parent.subscription_details field of newer API versions.
func (i *Invoice) SubscriptionID() string {
	if i.Subscription.ID != "" {
		return i.Subscription.ID
	}
	return i.Parent.SubscriptionDetails.Subscription.ID
}

// Price is a catalog price with its product resolved.
type Price struct {
	ID          string
	ProductID   string
	ProductName string
	UnitAmount  int64
	Currency    string
	Interval    string
	Active      bool
}

// pricePayload decodes price.* event objects.
type pricePayload struct {
	ID         string    `json:"id"`
	Active     bool      `json:"active"`
	Currency   string    `json:"currency"`
	UnitAmount int64     `json:"unit_amount"`
	Product    stripeRef `json:"product"`
	Recurring  struct {
		Interval string `json:"interval"`
	} `json:"recurring"`
}

// productPayload decodes product.* event objects.
type productPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// PlanDetails is what a price resolves to internally.
type PlanDetails struct {
	PriceID      string
	ProductID    string
	PlanType     string
	BillingCycle string
	Amount       decimal.Decimal
	Currency     string
}

// ReconcileInput carries one subscription-affecting event into the reconciler.
type ReconcileInput struct {
	Event          Event
	Subscription   *Subscription
	OrganizationID string
	UserID         string
	CustomerEmail  string
	// StatusOverride replaces the mapped status unless that status is terminal.
	StatusOverride models.SubscriptionStatus
}

// ReconcileResult describes what reconciliation wrote.
type ReconcileResult struct {
	Subscription   *models.BillingSubscription
	Organization   *models.Organization // nil when projection was skipped
	Created        bool
	PreviousStatus models.SubscriptionStatus
	PreviousPlan   string
	PeriodEnd      *time.Time
	CustomerEmail  string
}

// Changed reports whether status or plan moved compared to the stored aggregate.
func (r *ReconcileResult) Changed() bool {
	return r.Created ||
		r.PreviousStatus != r.Subscription.Status ||
		r.PreviousPlan != r.Subscription.PlanType
}

func metadataValue(md map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(md[k]); v != "" {
			return v
		}
	}
	return ""
}

func unixPtr(sec int64) *time.Time {
	t := time.Unix(sec, 0).UTC()
	return &t
}
