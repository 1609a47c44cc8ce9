package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/projectmarket-backend/internal/repo"
	"github.com/angelmondragon/projectmarket-backend/pkg/db/models"
	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
	"github.com/angelmondragon/projectmarket-backend/pkg/pagination"
)

// Repository persists offers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, offer *models.Offer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	UpdateIfStatus(ctx context.Context, id uuid.UUID, expected enums.OfferStatus, fields map[string]any) (bool, error)
	List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Offer, error)
}

// ListFilter scopes a listing to one buyer or to a set of projects. Exactly one
// side should be set.
type ListFilter struct {
	BuyerID    *uuid.UUID
	ProjectIDs []uuid.UUID
}

type repository struct {
	base repo.Base
}

// NewRepository binds the offer store to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, offer *models.Offer) error {
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	return r.base.DB(ctx).Create(offer).Error
}

// FindByID returns gorm.ErrRecordNotFound when the offer does not exist.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	return repo.FindByID[models.Offer](ctx, r.base, id)
}

// UpdateIfStatus applies fields only while the row still has the expected
// status. The check and the write are one statement, so of two racing callers
// exactly one observes true.
func (r *repository) UpdateIfStatus(ctx context.Context, id uuid.UUID, expected enums.OfferStatus, fields map[string]any) (bool, error) {
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}

	res := r.base.DB(ctx).
		Model(&models.Offer{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// List returns up to limit offers newest first, starting after cursor.
func (r *repository) List(ctx context.Context, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Offer, error) {
	query := r.base.DB(ctx).Model(&models.Offer{})
	switch {
	case filter.BuyerID != nil:
		query = query.Where("buyer_id = ?", *filter.BuyerID)
	case len(filter.ProjectIDs) > 0:
		query = query.Where("project_id IN ?", filter.ProjectIDs)
	default:
		return []models.Offer{}, nil
	}

	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Offer
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
