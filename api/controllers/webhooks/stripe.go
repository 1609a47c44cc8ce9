package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/projectmarket-backend/api/responses"
	pkgerrors "github.com/angelmondragon/projectmarket-backend/pkg/errors"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/projectmarket-backend/pkg/stripe"
	"github.com/angelmondragon/projectmarket-backend/pkg/types"
)

// maxPayloadBytes matches the gateway's documented event size ceiling.
const maxPayloadBytes = 65536

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeClient interface {
	SigningSecret() string
}

// StripeWebhook verifies and settles payment gateway events. Any verified
// event is acknowledged unless recording it failed.
func StripeWebhook(svc StripeWebhookService, client stripeClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "payload too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		event, err := pkgstripe.VerifyEvent(payload, r.Header.Get("Stripe-Signature"), client.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "invalid signature"))
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, types.WebhookAck{Received: true})
	}
}
