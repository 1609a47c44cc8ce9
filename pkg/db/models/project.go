package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is a listing owned by a seller.
type Project struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID   uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	Title      string    `gorm:"column:title;type:text;not null"`
	PriceCents int64     `gorm:"column:price_cents;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
