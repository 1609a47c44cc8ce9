package listings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/projectmarket-backend/internal/repo"
	"github.com/angelmondragon/projectmarket-backend/pkg/db/models"
)

// Repository reads project listings. Offers only need ownership and price.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListIDsBySeller(ctx context.Context, sellerID uuid.UUID) ([]uuid.UUID, error)
}

type repository struct {
	base repo.Base
}

// NewRepository binds the listing store to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

// FindByID returns gorm.ErrRecordNotFound when the project does not exist.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return repo.FindByID[models.Project](ctx, r.base, id)
}

func (r *repository) ListIDsBySeller(ctx context.Context, sellerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.base.DB(ctx).
		Model(&models.Project{}).
		Where("seller_id = ?", sellerID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
