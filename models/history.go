package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

type History struct {
	ID            int                    `gorm:"primary_key" json:"id"`
	ActionType    string                 `gorm:"size:10;not null" json:"action_type"`
	Before        string                 `gorm:"type:text" json:"before"`
	After         string                 `gorm:"type:text" json:"after"`
	Description   string                 `gorm:"type:text;not null" json:"description"`
	ReferenceID   int                    `gorm:"index" json:"reference_id"`
	ReferenceType InventoryReferenceType `gorm:"size:10;index" json:"reference_type"`
	UserId        int                    `gorm:"index;not null;default:0" json:"user_id"`
	UserName      string                 `gorm:"size:100" json:"user_name"`
	Username      string                 `gorm:"size:100" json:"username"`
	CreatedAt     time.Time              `gorm:"autoCreateTime" json:"created_at"`
}

func createHistory(tx *gorm.DB,
	actionType string,
	referenceId int,
	referenceType InventoryReferenceType,
	before interface{},
	after interface{},
	description string) error {

	var history History

	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)

	// the actor is optional; maintenance tools run without one
	ctx := tx.Statement.Context
	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)
	username, _ := utils.GetUsernameFromContext(ctx)

	history.ActionType = actionType
	if before != nil {
		history.Before = string(b)
	}
	if after != nil {
		history.After = string(a)
	}
	history.Description = description
	history.ReferenceID = referenceId
	history.ReferenceType = referenceType
	history.UserId = userId
	history.UserName = userName
	history.Username = username

	return tx.Create(&history).Error
}

// ListHistories returns the audit trail of one entity, newest first.
func ListHistories(ctx context.Context, referenceType InventoryReferenceType, referenceId int) ([]*History, error) {
	db := config.GetDB()
	var results []*History
	err := db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceId).
		Order("id DESC").
		Find(&results).Error
	return results, err
}
