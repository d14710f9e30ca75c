// Package notify delivers billing side effects: operator alerts and in-app
// notices for organization members. Callers never see delivery errors.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Alert kinds.
const (
	AlertSubscriptionCreated   = "subscription_created"
	AlertSubscriptionUpdated   = "subscription_updated"
	AlertSubscriptionCancelled = "subscription_cancelled"
	AlertTrialEnding           = "trial_ending"
	AlertPaymentFailed         = "payment_failed"
	AlertPastDue               = "past_due"
)

// Alert is an operator-facing message. Every field is a snapshot taken at
// reconciliation time so delivery never re-reads billing state.
type Alert struct {
	Kind             string          `json:"kind"`
	EventID          string          `json:"event_id"`
	OrganizationID   string          `json:"organization_id"`
	OrganizationName string          `json:"organization_name"`
	UserEmail        string          `json:"user_email"`
	SubscriptionID   string          `json:"subscription_id"`
	PlanType         string          `json:"plan_type"`
	BillingCycle     string          `json:"billing_cycle"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	PreviousStatus   string          `json:"previous_status,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	Comment          string          `json:"comment,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
}

// Title is the one-line headline used by chat and email sinks.
func (a Alert) Title() string {
	org := a.OrganizationName
	if org == "" {
		org = a.OrganizationID
	}
	if org == "" {
		org = "unknown organization"
	}
	switch a.Kind {
	case AlertSubscriptionCreated:
		return fmt.Sprintf("New subscription: %s", org)
	case AlertSubscriptionUpdated:
		return fmt.Sprintf("Subscription updated: %s", org)
	case AlertSubscriptionCancelled:
		return fmt.Sprintf("Subscription cancelled: %s", org)
	case AlertTrialEnding:
		return fmt.Sprintf("Trial ending soon: %s", org)
	case AlertPaymentFailed:
		return fmt.Sprintf("Payment failed: %s", org)
	case AlertPastDue:
		return fmt.Sprintf("Invoice overdue: %s", org)
	default:
		return fmt.Sprintf("Billing event %s: %s", a.Kind, org)
	}
}

// Summary renders the alert as plain text lines.
func (a Alert) Summary() string {
	var b strings.Builder
	b.WriteString(a.Title())
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "\n%s: %s", label, value)
		}
	}
	line("Email", a.UserEmail)
	line("Plan", strings.TrimSpace(a.PlanType+" "+a.BillingCycle))
	if !a.Amount.IsZero() || a.Currency != "" {
		line("Amount", strings.TrimSpace(a.Amount.StringFixed(2)+" "+strings.ToUpper(a.Currency)))
	}
	if a.PreviousStatus != "" && a.PreviousStatus != a.Status {
		line("Status", a.PreviousStatus+" -> "+a.Status)
	} else {
		line("Status", a.Status)
	}
	line("Reason", a.Reason)
	line("Comment", a.Comment)
	line("Subscription", a.SubscriptionID)
	line("Event", a.EventID)
	return b.String()
}

// UserNotice is an in-app notification for one organization member.
type UserNotice struct {
	OrganizationID string                 `json:"organization_id"`
	UserID         string                 `json:"user_id"`
	Type           string                 `json:"type"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	ActionURL      string                 `json:"action_url,omitempty"`
	ExpiresAt      *time.Time             `json:"expires_at,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Notifier is the fire-and-forget side-effect boundary used by billing.
// Implementations log failures instead of returning them.
type Notifier interface {
	Alert(ctx context.Context, a Alert)
	UserNotice(ctx context.Context, n UserNotice)
}
