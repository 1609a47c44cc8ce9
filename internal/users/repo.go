package users

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/projectmarket-backend/internal/repo"
	"github.com/angelmondragon/projectmarket-backend/pkg/db/models"
)

// Repository exposes read access to marketplace profiles.
type Repository struct {
	base repo.Base
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return repo.FindByID[models.User](ctx, r.base, id)
}

// FindByIDs loads every user in ids keyed by id. Missing ids are absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]models.User, error) {
	rows, err := repo.FindByIDs[models.User](ctx, r.base, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.User, len(rows))
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}
