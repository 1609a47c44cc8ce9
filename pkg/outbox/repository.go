package outbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/projectmarket-backend/pkg/db/models"
	"github.com/angelmondragon/projectmarket-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

// FetchUnpublishedForPublish locks up to limit unpublished rows that still
// have attempts left. Concurrent publishers skip each other's rows.
func (r *Repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var rows []models.OutboxEvent
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published_at": time.Now().UTC(),
			"last_error":   nil,
		}).Error
}

func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	return tx.Model(&models.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_error":    err.Error(),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// MarkTerminalTx parks a row by exhausting its attempts so it is never fetched
// again, and copies it into outbox_dlq for remediation.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, err error, terminalAttempts int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !reason.IsValid() {
		return fmt.Errorf("invalid dlq reason %q", reason)
	}
	message := "unknown error"
	if err != nil {
		message = err.Error()
	}
	if updErr := tx.Model(&models.OutboxEvent{}).
		Where("id = ?", event.ID).
		Updates(map[string]any{
			"last_error":    message,
			"attempt_count": terminalAttempts,
		}).Error; updErr != nil {
		return updErr
	}
	parked := event.Parked(reason, message, terminalAttempts)
	return tx.Create(&parked).Error
}
