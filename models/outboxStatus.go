package models

import (
	"context"
	"time"

	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/utils"
)

// OutboxStatus is the publish state of the latest outbox row of an entity.
type OutboxStatus struct {
	RecordId         int                    `json:"record_id"`
	ReferenceType    InventoryReferenceType `json:"reference_type"`
	ReferenceId      int                    `json:"reference_id"`
	Action           InventoryEventAction   `json:"action"`
	PublishStatus    string                 `json:"publish_status"`
	PublishAttempts  int                    `json:"publish_attempts"`
	NextAttemptAt    *time.Time             `json:"next_attempt_at"`
	LastPublishError *string                `json:"last_publish_error"`
	CreatedAt        time.Time              `json:"created_at"`
	PublishedAt      *time.Time             `json:"published_at"`
}

func GetOutboxStatus(ctx context.Context, referenceType InventoryReferenceType, referenceId int) (*OutboxStatus, error) {
	db := config.GetDB()
	var rec InventoryEventRecord
	result := db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceId).
		Order("id DESC").
		Limit(1).
		Find(&rec)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}

	return &OutboxStatus{
		RecordId:         rec.ID,
		ReferenceType:    rec.ReferenceType,
		ReferenceId:      rec.ReferenceId,
		Action:           rec.Action,
		PublishStatus:    rec.PublishStatus,
		PublishAttempts:  rec.PublishAttempts,
		NextAttemptAt:    rec.NextAttemptAt,
		LastPublishError: rec.LastPublishError,
		CreatedAt:        rec.CreatedAt,
		PublishedAt:      rec.PublishedAt,
	}, nil
}

// ReprocessOutbox puts the entity's failed and dead rows back in the dispatch queue
// with a fresh attempt budget.
func ReprocessOutbox(ctx context.Context, referenceType InventoryReferenceType, referenceId int) (*OutboxStatus, error) {
	db := config.GetDB()

	res := db.WithContext(ctx).
		Model(&InventoryEventRecord{}).
		Where("reference_type = ? AND reference_id = ? AND publish_status IN ?", referenceType, referenceId,
			[]string{OutboxPublishStatusFailed, OutboxPublishStatusDead}).
		Updates(map[string]interface{}{
			"locked_at":        nil,
			"locked_by":        nil,
			"publish_status":   OutboxPublishStatusPending,
			"next_attempt_at":  nil,
			"publish_attempts": 0,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}

	return GetOutboxStatus(ctx, referenceType, referenceId)
}
