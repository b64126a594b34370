package models

import "time"

// ReconciliationReport is one drift finding of RunReconciliationChecks.
type ReconciliationReport struct {
	ID            int       `gorm:"primary_key" json:"id"`
	CheckType     string    `gorm:"size:50;index;not null" json:"check_type"`  // e.g. ITEM_UNITS, CATEGORY_QUANTITY
	EntityType    string    `gorm:"size:50;index;not null" json:"entity_type"` // e.g. Item, Purchase
	EntityId      int       `gorm:"index;not null" json:"entity_id"`
	Details       string    `gorm:"type:text" json:"details"`
	Repaired      bool      `gorm:"not null;default:false" json:"repaired"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
