package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

// VerifyEvent checks the Stripe-Signature header against the raw body and
// returns the decoded event envelope. API version mismatches are tolerated
// since the payload is decoded into local structs.
func VerifyEvent(payload []byte, signatureHeader, webhookSecret string) (Event, error) {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if sig == "" || secret == "" {
		return Event{}, ErrSignature
	}

	ev, err := webhook.ConstructEventWithOptions(payload, sig, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrSignature, err)
	}

	out := Event{
		ID:   ev.ID,
		Type: string(ev.Type),
		Raw:  payload,
	}
	if ev.Created > 0 {
		out.Created = time.Unix(ev.Created, 0).UTC()
	}
	if ev.Data != nil {
		out.Data = json.RawMessage(ev.Data.Raw)
	}
	return out, nil
}
