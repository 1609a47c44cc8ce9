package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/projectmarket-backend/internal/repo"
	"github.com/angelmondragon/projectmarket-backend/pkg/db/models"
	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
)

// Service records settled payments exactly once per payment reference.
type Service interface {
	Lookup(ctx context.Context, paymentReference string) (*models.Transaction, error)
	RecordPayment(ctx context.Context, tx *gorm.DB, input RecordPaymentInput) (*models.Transaction, bool, error)
}

type service struct {
	repo Repository
}

// RecordPaymentInput captures the immutable data a ledger entry requires.
type RecordPaymentInput struct {
	OfferID          uuid.UUID
	PaymentReference string
	AmountCents      int64
	Currency         string
	GatewayEventID   string
	OccurredAt       time.Time
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

// Lookup returns nil without error when the reference has not been recorded.
func (s *service) Lookup(ctx context.Context, paymentReference string) (*models.Transaction, error) {
	ref := strings.TrimSpace(paymentReference)
	if ref == "" {
		return nil, fmt.Errorf("payment reference is required")
	}
	txn, err := s.repo.FindByPaymentReference(ctx, ref)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return txn, nil
}

// RecordPayment inserts the entry inside tx when tx is non-nil. The boolean is
// false when the reference was already recorded, in which case the stored
// entry is returned.
func (s *service) RecordPayment(ctx context.Context, tx *gorm.DB, input RecordPaymentInput) (*models.Transaction, bool, error) {
	if input.OfferID == uuid.Nil {
		return nil, false, fmt.Errorf("offer id is required")
	}
	ref := strings.TrimSpace(input.PaymentReference)
	if ref == "" {
		return nil, false, fmt.Errorf("payment reference is required")
	}
	if input.AmountCents < 0 {
		return nil, false, fmt.Errorf("amount must not be negative")
	}
	currency := strings.ToLower(strings.TrimSpace(input.Currency))
	if currency == "" {
		return nil, false, fmt.Errorf("currency is required")
	}

	txn := &models.Transaction{
		ID:               uuid.New(),
		OfferID:          input.OfferID,
		PaymentReference: ref,
		Status:           enums.TransactionStatusSucceeded,
		AmountCents:      input.AmountCents,
		Currency:         currency,
	}
	if id := strings.TrimSpace(input.GatewayEventID); id != "" {
		txn.GatewayEventID = &id
	}
	if !input.OccurredAt.IsZero() {
		txn.CreatedAt = input.OccurredAt.UTC()
	}

	r := s.repo.WithTx(tx)
	created, err := r.InsertIfAbsent(ctx, txn)
	if err != nil {
		return nil, false, err
	}
	if created {
		return txn, true, nil
	}
	existing, err := r.FindByPaymentReference(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}
