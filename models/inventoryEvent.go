package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

// Outbox publish statuses for InventoryEventRecord.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// InventoryEventRecord is the transactional outbox row written with every committed mutation.
// The dispatcher publishes it to Pub/Sub after commit.
type InventoryEventRecord struct {
	ID               int                    `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	OccurredAt       time.Time              `gorm:"index;not null" json:"occurred_at"`
	ReferenceId      int                    `gorm:"index" json:"reference_id"`
	ReferenceType    InventoryReferenceType `gorm:"size:10;not null" json:"reference_type"`
	Action           InventoryEventAction   `gorm:"size:1;not null" json:"action"`
	OldObj           []byte                 `gorm:"type:blob" json:"old_obj"`
	NewObj           []byte                 `gorm:"type:blob" json:"new_obj"`
	PublishStatus    string                 `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time             `gorm:"index" json:"published_at"`
	PubSubMessageId  *string                `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int                    `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time             `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time             `gorm:"index" json:"locked_at"`
	LockedBy         *string                `gorm:"size:100" json:"locked_by"`
	LastPublishError *string                `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string                 `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToInventoryEventMessage(record InventoryEventRecord) config.InventoryEventMessage {
	return config.InventoryEventMessage{
		ID:            record.ID,
		OccurredAt:    record.OccurredAt,
		ReferenceId:   record.ReferenceId,
		ReferenceType: string(record.ReferenceType),
		Action:        string(record.Action),
		OldObj:        record.OldObj,
		NewObj:        record.NewObj,
		CorrelationId: record.CorrelationId,
	}
}

// PublishInventoryEvent writes the outbox record inside the caller's transaction.
// Nothing is sent to Pub/Sub here.
func PublishInventoryEvent(tx *gorm.DB, refId int, refType InventoryReferenceType, obj interface{}, oldObj interface{}, action InventoryEventAction) error {
	var objInByte []byte
	var oldObjInByte []byte
	var err error

	if action == InventoryEventActionCreate || action == InventoryEventActionUpdate {
		objInByte, err = json.Marshal(obj)
		if err != nil {
			return err
		}
	}
	if action == InventoryEventActionUpdate || action == InventoryEventActionDelete {
		oldObjInByte, err = json.Marshal(oldObj)
		if err != nil {
			return err
		}
	}

	record := InventoryEventRecord{
		OccurredAt:    time.Now().UTC(),
		ReferenceId:   refId,
		ReferenceType: refType,
		Action:        action,
		NewObj:        objInByte,
		OldObj:        oldObjInByte,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(tx.Statement.Context),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// recordMutation writes the history row and the outbox event of one mutation.
func recordMutation(tx *gorm.DB, action InventoryEventAction, refType InventoryReferenceType, refId int, before interface{}, after interface{}, description string) error {
	if err := createHistory(tx, action.historyActionType(), refId, refType, before, after, description); err != nil {
		return err
	}
	return PublishInventoryEvent(tx, refId, refType, after, before, action)
}
