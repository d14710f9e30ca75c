package billing

import "errors"

var (
	// ErrSignature marks a delivery whose Stripe-Signature did not verify.
	ErrSignature = errors.New("billing: invalid webhook signature")
	// ErrInvalidEvent marks a verified event whose payload could not be decoded.
	ErrInvalidEvent = errors.New("billing: invalid event payload")
	// ErrVendorLookup marks a failed Stripe API read; reconciliation aborts before writing.
	ErrVendorLookup = errors.New("billing: vendor lookup failed")
	// ErrPersistence marks a failed database write during reconciliation.
	ErrPersistence = errors.New("billing: persistence failed")
	// ErrOrganizationNotFound is returned when a projection targets an unknown organization.
	ErrOrganizationNotFound = errors.New("billing: organization not found")
)
