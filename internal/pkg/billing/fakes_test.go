package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/OpsLedger/app/models"
	"github.com/ManuelReschke/OpsLedger/internal/pkg/notify"
)

// memRepo is an in-memory Repository. Rows are copied on the way in and out
// so tests observe only what was written.
type memRepo struct {
	mu            sync.Mutex
	subs          map[string]models.BillingSubscription
	orgs          map[string]models.Organization
	prices        map[string]models.BillingPrice
	events        map[string]models.BillingWebhookEvent
	users         map[string]models.User
	cancellations []models.BillingCancellation
	nextID        uint
	writes        int

	failUpsert error
}

func newMemRepo() *memRepo {
	return &memRepo{
		subs:   map[string]models.BillingSubscription{},
		orgs:   map[string]models.Organization{},
		prices: map[string]models.BillingPrice{},
		events: map[string]models.BillingWebhookEvent{},
		users:  map[string]models.User{},
	}
}

func (r *memRepo) addOrg(org models.Organization) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orgs[org.ID] = org
}

func (r *memRepo) org(t *testing.T, id string) models.Organization {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	org, ok := r.orgs[id]
	if !ok {
		t.Fatalf("organization %s not stored", id)
	}
	return org
}

func (r *memRepo) sub(t *testing.T, id string) models.BillingSubscription {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		t.Fatalf("subscription %s not stored", id)
	}
	return sub
}

func (r *memRepo) WithinTransaction(_ context.Context, fn func(tx Repository) error) error {
	return fn(r)
}

func (r *memRepo) GetSubscriptionByStripeID(_ context.Context, id string) (*models.BillingSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &sub, nil
}

func (r *memRepo) UpsertSubscription(_ context.Context, sub *models.BillingSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpsert != nil {
		return r.failUpsert
	}
	r.writes++
	now := time.Now().UTC()
	if existing, ok := r.subs[sub.StripeSubscriptionID]; ok {
		sub.ID = existing.ID
		sub.CreatedBy = existing.CreatedBy
		sub.CreatedAt = existing.CreatedAt
	} else {
		r.nextID++
		sub.ID = r.nextID
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	r.subs[sub.StripeSubscriptionID] = *sub
	return nil
}

func (r *memRepo) GetOrganization(_ context.Context, id string) (*models.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	org, ok := r.orgs[id]
	if !ok {
		return nil, ErrOrganizationNotFound
	}
	return &org, nil
}

func (r *memRepo) SaveOrganizationProjection(_ context.Context, org *models.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.orgs[org.ID] = *org
	return nil
}

func (r *memRepo) GetUser(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *memRepo) InsertCancellation(_ context.Context, rec *models.BillingCancellation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if rec.StripeEventID != nil {
		for _, c := range r.cancellations {
			if c.StripeEventID != nil && *c.StripeEventID == *rec.StripeEventID {
				return nil
			}
		}
	}
	r.cancellations = append(r.cancellations, *rec)
	return nil
}

func (r *memRepo) UpsertPrice(_ context.Context, p *models.BillingPrice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	r.prices[p.StripePriceID] = *p
	return nil
}

func (r *memRepo) UpdateProductPrices(_ context.Context, productID, productName string, active bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, p := range r.prices {
		if p.StripeProductID != productID {
			continue
		}
		p.IsActive = active
		if productName != "" {
			p.ProductName = productName
			p.PlanType = planTypeFromProductName(productName)
		}
		r.prices[id] = p
		n++
	}
	r.writes++
	return n, nil
}

func (r *memRepo) GetPrice(_ context.Context, id string) (*models.BillingPrice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *memRepo) CreateWebhookEventIfNotExists(_ context.Context, ev *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ev.Provider + ":" + ev.ProviderEventID
	if stored, ok := r.events[key]; ok {
		return false, &stored, nil
	}
	r.nextID++
	ev.ID = r.nextID
	r.events[key] = *ev
	stored := *ev
	return true, &stored, nil
}

func (r *memRepo) MarkWebhookProcessed(_ context.Context, id uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, ev := range r.events {
		if ev.ID != id {
			continue
		}
		now := time.Now().UTC()
		ev.ProcessedAt = &now
		ev.ProcessingError = processingError
		ev.Attempts++
		r.events[key] = ev
		return nil
	}
	return gorm.ErrRecordNotFound
}

type fakeVendor struct {
	subs       map[string]*Subscription
	prices     map[string]*Price
	err        error
	priceCalls int
	subCalls   int
}

func newFakeVendor() *fakeVendor {
	return &fakeVendor{subs: map[string]*Subscription{}, prices: map[string]*Price{}}
}

func (v *fakeVendor) GetSubscription(_ context.Context, id string) (*Subscription, error) {
	v.subCalls++
	if v.err != nil {
		return nil, fmt.Errorf("%w: subscription %s: %v", ErrVendorLookup, id, v.err)
	}
	sub, ok := v.subs[id]
	if !ok {
		return nil, fmt.Errorf("%w: subscription %s: no such subscription", ErrVendorLookup, id)
	}
	return sub, nil
}

func (v *fakeVendor) GetPrice(_ context.Context, id string) (*Price, error) {
	v.priceCalls++
	if v.err != nil {
		return nil, fmt.Errorf("%w: price %s: %v", ErrVendorLookup, id, v.err)
	}
	p, ok := v.prices[id]
	if !ok {
		return nil, fmt.Errorf("%w: price %s: no such price", ErrVendorLookup, id)
	}
	return p, nil
}

type recordingNotifier struct {
	alerts  []notify.Alert
	notices []notify.UserNotice
}

func (n *recordingNotifier) Alert(_ context.Context, a notify.Alert) {
	n.alerts = append(n.alerts, a)
}

func (n *recordingNotifier) UserNotice(_ context.Context, un notify.UserNotice) {
	n.notices = append(n.notices, un)
}

func (n *recordingNotifier) kinds() []string {
	out := make([]string, 0, len(n.alerts))
	for _, a := range n.alerts {
		out = append(out, a.Kind)
	}
	return out
}

type testEnv struct {
	repo     *memRepo
	vendor   *fakeVendor
	notifier *recordingNotifier
	svc      *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:     newMemRepo(),
		vendor:   newFakeVendor(),
		notifier: &recordingNotifier{},
	}
	env.svc = NewService(env.repo, env.vendor, env.notifier, WithDefaultCurrency("eur"))
	return env
}

// event builds a verified Event whose data object is obj.
func event(t *testing.T, id, typ string, obj interface{}) Event {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshal data object: %v", err)
	}
	raw, err := json.Marshal(map[string]interface{}{
		"id":      id,
		"object":  "event",
		"type":    typ,
		"created": 1767225600,
		"data":    map[string]json.RawMessage{"object": data},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return Event{
		ID:      id,
		Type:    typ,
		Created: time.Unix(1767225600, 0).UTC(),
		Data:    data,
		Raw:     raw,
	}
}

// subscriptionObject returns a Stripe-shaped subscription payload.
func subscriptionObject(id, status string, extra map[string]interface{}) map[string]interface{} {
	obj := map[string]interface{}{
		"id":         id,
		"object":     "subscription",
		"status":     status,
		"customer":   "cus_1",
		"start_date": 1767225600,
		"metadata":   map[string]string{"organizationId": "org_1", "userId": "user_1"},
	}
	for k, v := range extra {
		obj[k] = v
	}
	return obj
}

func itemsWithPrice(priceID string, periodEnd int64) map[string]interface{} {
	return map[string]interface{}{
		"data": []map[string]interface{}{{
			"price":                map[string]interface{}{"id": priceID, "product": "prod_1"},
			"current_period_start": 1767225600,
			"current_period_end":   periodEnd,
		}},
	}
}

var errBoom = errors.New("boom")
