package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base holds the connection a domain repository runs against: the pool, or
// the transaction a service opened.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the handle bound to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx rebinds to tx. A nil tx keeps the current handle.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// FindByID loads one T by primary key and returns gorm.ErrRecordNotFound
// when it is missing.
func FindByID[T any](ctx context.Context, b Base, id uuid.UUID) (*T, error) {
	var row T
	if err := b.DB(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByIDs loads every T whose id is in ids. Unknown ids are skipped.
func FindByIDs[T any](ctx context.Context, b Base, ids []uuid.UUID) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	var rows []T
	if err := b.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
