package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/projectmarket-backend/pkg/db"
	"github.com/angelmondragon/projectmarket-backend/pkg/db/models"
)

const paymentReferenceConstraint = "transactions_payment_reference_key"

// Repository manages persistence for settled payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByPaymentReference(ctx context.Context, paymentReference string) (*models.Transaction, error)
	InsertIfAbsent(ctx context.Context, txn *models.Transaction) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByPaymentReference returns gorm.ErrRecordNotFound when nothing was recorded.
func (r *repository) FindByPaymentReference(ctx context.Context, paymentReference string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "payment_reference = ?", paymentReference).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// InsertIfAbsent writes txn unless its payment reference is already recorded.
// The unique index arbitrates concurrent deliveries; the loser sees false.
func (r *repository) InsertIfAbsent(ctx context.Context, txn *models.Transaction) (bool, error) {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_reference"}},
			DoNothing: true,
		}).
		Create(txn)
	if res.Error != nil {
		if db.IsUniqueViolation(res.Error, paymentReferenceConstraint) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
