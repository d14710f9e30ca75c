package billing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ManuelReschke/OpsLedger/app/models"
)

// Stripe amounts for these currencies are already in the major unit.
var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {}, "mga": {},
	"pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

// planTypeFromProductName derives the internal plan tier from a product name
// such as "OpsLedger Pro (yearly)". Tiers match whole words only.
func planTypeFromProductName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return models.PlanTypeStarter
	}
	words := strings.FieldsFunc(n, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	for _, w := range words {
		switch w {
		case models.PlanTypePro, "professional":
			return models.PlanTypePro
		case models.PlanTypeStarter:
			return models.PlanTypeStarter
		}
	}
	return slugify(n)
}

func slugify(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore && b.Len() > 0:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if out == "" {
		return models.PlanTypeStarter
	}
	if len(out) > 50 {
		out = out[:50]
	}
	return out
}

func billingCycleFromInterval(interval string) string {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "year", "yearly", "annual":
		return models.BillingCycleYearly
	default:
		return models.BillingCycleMonthly
	}
}

func normalizeCurrency(currency, fallback string) string {
	c := strings.ToLower(strings.TrimSpace(currency))
	if c == "" {
		return strings.ToLower(strings.TrimSpace(fallback))
	}
	return c
}

// amountFromMinorUnits converts a Stripe unit_amount into the major currency unit.
func amountFromMinorUnits(minor int64, currency string) decimal.Decimal {
	if _, ok := zeroDecimalCurrencies[strings.ToLower(currency)]; ok {
		return decimal.NewFromInt(minor)
	}
	return decimal.New(minor, -2)
}
