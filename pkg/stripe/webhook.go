package stripe

import (
	"errors"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("stripe webhook signature invalid")

// VerifyEvent checks the Stripe-Signature header against the signing secret and
// only then decodes the event envelope. Events created under a different API
// version are accepted; handlers decode only the fields they need.
func VerifyEvent(payload []byte, signatureHeader, secret string) (stripe.Event, error) {
	if signatureHeader == "" || secret == "" {
		return stripe.Event{}, ErrInvalidSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, errors.Join(ErrInvalidSignature, err)
	}
	return event, nil
}

// VerifyEvent validates payload with the client's signing secret.
func (c *Client) VerifyEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	return VerifyEvent(payload, signatureHeader, c.SigningSecret())
}
