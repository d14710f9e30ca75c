package notify

import (
	"encoding/json"
	"time"
)

// ToMap converts the alert to a job payload
func (a Alert) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"kind":              a.Kind,
		"event_id":          a.EventID,
		"organization_id":   a.OrganizationID,
		"organization_name": a.OrganizationName,
		"user_email":        a.UserEmail,
		"subscription_id":   a.SubscriptionID,
		"plan_type":         a.PlanType,
		"billing_cycle":     a.BillingCycle,
		"amount":            a.Amount.String(),
		"currency":          a.Currency,
		"status":            a.Status,
		"previous_status":   a.PreviousStatus,
		"reason":            a.Reason,
		"comment":           a.Comment,
		"occurred_at":       a.OccurredAt.UTC().Format(time.RFC3339),
	}
}

// AlertFromMap creates an alert from a job payload
func AlertFromMap(data map[string]interface{}) (*Alert, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var a Alert
	err = json.Unmarshal(jsonData, &a)
	return &a, err
}

// ToMap converts the notice to a job payload
func (n UserNotice) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"organization_id": n.OrganizationID,
		"user_id":         n.UserID,
		"type":            n.Type,
		"title":           n.Title,
		"message":         n.Message,
	}
	if n.ActionURL != "" {
		m["action_url"] = n.ActionURL
	}
	if n.ExpiresAt != nil {
		m["expires_at"] = n.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if len(n.Metadata) > 0 {
		m["metadata"] = n.Metadata
	}
	return m
}

// UserNoticeFromMap creates a notice from a job payload
func UserNoticeFromMap(data map[string]interface{}) (*UserNotice, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var n UserNotice
	err = json.Unmarshal(jsonData, &n)
	return &n, err
}
