package billing

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/OpsLedger/app/models"
)

// SyncCatalog keeps the local price table in line with price.* and product.*
// events. Deleted objects are kept as inactive rows.
func (s *Service) SyncCatalog(ctx context.Context, ev Event) error {
	deleted := strings.HasSuffix(ev.Type, ".deleted")
	switch {
	case strings.HasPrefix(ev.Type, eventPrefixPrice):
		return s.syncPrice(ctx, ev, deleted)
	case strings.HasPrefix(ev.Type, eventPrefixProduct):
		return s.syncProduct(ctx, ev, deleted)
	}
	return nil
}

func (s *Service) syncPrice(ctx context.Context, ev Event, deleted bool) error {
	var p pricePayload
	if err := decodeObject(ev, &p); err != nil {
		return err
	}
	if p.ID == "" {
		return nil
	}

	productName := ""
	if !deleted {
		productName = s.productName(ctx, p)
	} else if existing, err := s.repo.GetPrice(ctx, p.ID); err == nil {
		productName = existing.ProductName
	}

	currency := normalizeCurrency(p.Currency, s.defaultCurrency)
	row := &models.BillingPrice{
		StripePriceID:   p.ID,
		StripeProductID: p.Product.ID,
		ProductName:     productName,
		PlanType:        planTypeFromProductName(productName),
		BillingCycle:    billingCycleFromInterval(p.Recurring.Interval),
		Amount:          amountFromMinorUnits(p.UnitAmount, currency),
		Currency:        currency,
		IsActive:        p.Active && !deleted,
	}
	if err := s.repo.UpsertPrice(ctx, row); err != nil {
		return persistenceError("price", "upsert", ev.ID, "", "", err)
	}
	log.Infof("[Billing] catalog price=%s product=%s plan=%s active=%t", row.StripePriceID, row.StripeProductID, row.PlanType, row.IsActive)
	return nil
}

// productName prefers the expanded product in the payload and falls back to
// a vendor read. A failed read leaves the name empty rather than failing sync.
func (s *Service) productName(ctx context.Context, p pricePayload) string {
	if p.Product.Name != "" {
		return p.Product.Name
	}
	if s.vendor == nil {
		return ""
	}
	price, err := s.vendor.GetPrice(ctx, p.ID)
	if err != nil {
		log.Warnf("[Billing] catalog product name for price %s: %v", p.ID, err)
		return ""
	}
	return price.ProductName
}

func (s *Service) syncProduct(ctx context.Context, ev Event, deleted bool) error {
	var p productPayload
	if err := decodeObject(ev, &p); err != nil {
		return err
	}
	if p.ID == "" {
		return nil
	}
	n, err := s.repo.UpdateProductPrices(ctx, p.ID, strings.TrimSpace(p.Name), p.Active && !deleted)
	if err != nil {
		return persistenceError("price", "update_product", ev.ID, "", "", err)
	}
	log.Infof("[Billing] catalog product=%s name=%q active=%t prices=%d", p.ID, p.Name, p.Active && !deleted, n)
	return nil
}
