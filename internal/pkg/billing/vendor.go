package billing

import (
	"context"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	stripeprice "github.com/stripe/stripe-go/v82/price"
	stripesubscription "github.com/stripe/stripe-go/v82/subscription"
)

// VendorClient reads billing objects from the payment processor.
type VendorClient interface {
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	GetPrice(ctx context.Context, id string) (*Price, error)
}

type stripeVendor struct {
	getSubscription func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	getPrice        func(id string, params *stripe.PriceParams) (*stripe.Price, error)
}

// NewStripeVendor builds a VendorClient bound to one API key. The key is
// never written to the package-level stripe.Key.
func NewStripeVendor(apiKey string) VendorClient {
	backend := stripe.GetBackend(stripe.APIBackend)
	subs := &stripesubscription.Client{B: backend, Key: apiKey}
	prices := &stripeprice.Client{B: backend, Key: apiKey}
	return &stripeVendor{
		getSubscription: subs.Get,
		getPrice:        prices.Get,
	}
}

func (v *stripeVendor) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty subscription id", ErrVendorLookup)
	}
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("customer")
	params.AddExpand("latest_invoice")
	sub, err := v.getSubscription(id, params)
	if err != nil {
		return nil, fmt.Errorf("%w: subscription %s: %v", ErrVendorLookup, id, err)
	}
	return subscriptionFromStripe(sub), nil
}

func (v *stripeVendor) GetPrice(ctx context.Context, id string) (*Price, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty price id", ErrVendorLookup)
	}
	params := &stripe.PriceParams{}
	params.Context = ctx
	params.AddExpand("product")
	p, err := v.getPrice(id, params)
	if err != nil {
		return nil, fmt.Errorf("%w: price %s: %v", ErrVendorLookup, id, err)
	}
	return priceFromStripe(p), nil
}

func priceFromStripe(p *stripe.Price) *Price {
	if p == nil {
		return nil
	}
	out := &Price{
		ID:         p.ID,
		UnitAmount: p.UnitAmount,
		Currency:   string(p.Currency),
		Active:     p.Active,
	}
	if p.Product != nil {
		out.ProductID = p.Product.ID
		out.ProductName = p.Product.Name
	}
	if p.Recurring != nil {
		out.Interval = string(p.Recurring.Interval)
	}
	return out
}

func subscriptionFromStripe(s *stripe.Subscription) *Subscription {
	if s == nil {
		return nil
	}
	out := &Subscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		StartDate:         s.StartDate,
		TrialEnd:          s.TrialEnd,
		CanceledAt:        s.CanceledAt,
		EndedAt:           s.EndedAt,
		Metadata:          s.Metadata,
	}
	if s.Customer != nil {
		out.Customer = stripeRef{ID: s.Customer.ID, Email: s.Customer.Email}
	}
	if s.DefaultPaymentMethod != nil {
		out.DefaultPaymentMethod.ID = s.DefaultPaymentMethod.ID
	}
	if s.LatestInvoice != nil {
		out.LatestInvoice.ID = s.LatestInvoice.ID
		out.LatestInvoice.Expanded = true
		if s.LatestInvoice.DefaultPaymentMethod != nil {
			out.LatestInvoice.DefaultPaymentMethod.ID = s.LatestInvoice.DefaultPaymentMethod.ID
		}
	}
	if s.CancellationDetails != nil {
		out.CancellationDetails = CancellationDetails{
			Reason:   string(s.CancellationDetails.Reason),
			Comment:  s.CancellationDetails.Comment,
			Feedback: string(s.CancellationDetails.Feedback),
		}
	}
	if s.Items != nil {
		for _, item := range s.Items.Data {
			if item == nil {
				continue
			}
			var si SubscriptionItem
			si.CurrentPeriodStart = item.CurrentPeriodStart
			si.CurrentPeriodEnd = item.CurrentPeriodEnd
			if item.Price != nil {
				si.Price.ID = item.Price.ID
				if item.Price.Product != nil {
					si.Price.Product.ID = item.Price.Product.ID
				}
			}
			out.Items.Data = append(out.Items.Data, si)
		}
	}
	return out
}
