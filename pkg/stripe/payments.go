package stripe

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
)

// PaymentIntentRequest describes a destination charge on behalf of a seller.
type PaymentIntentRequest struct {
	AmountCents        int64
	FeeCents           int64
	Currency           string
	DestinationAccount string
	IdempotencyKey     string
	Metadata           map[string]string
}

// PaymentIntent is the subset of the gateway response the marketplace keeps.
type PaymentIntent struct {
	ID           string
	ClientSecret string
}

var (
	errAmountRequired      = errors.New("payment intent amount must be positive")
	errFeeOutOfRange       = errors.New("application fee must be between zero and the amount")
	errDestinationRequired = errors.New("destination account is required")
)

// CreatePaymentIntent creates a card payment intent that routes funds to the
// destination account minus the application fee.
func (c *Client) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error) {
	if req.AmountCents <= 0 {
		return nil, errAmountRequired
	}
	if req.FeeCents < 0 || req.FeeCents > req.AmountCents {
		return nil, errFeeOutOfRange
	}
	destination := strings.TrimSpace(req.DestinationAccount)
	if destination == "" {
		return nil, errDestinationRequired
	}

	params := &stripe.PaymentIntentParams{
		Amount:               stripe.Int64(req.AmountCents),
		Currency:             stripe.String(strings.ToLower(req.Currency)),
		ApplicationFeeAmount: stripe.Int64(req.FeeCents),
		TransferData: &stripe.PaymentIntentTransferDataParams{
			Destination: stripe.String(destination),
		},
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}
	return &PaymentIntent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// CancelPaymentIntent voids an intent the marketplace no longer intends to collect.
func (c *Client) CancelPaymentIntent(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("payment intent id is required")
	}
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx
	_, err := paymentintent.Cancel(id, params)
	return err
}
