package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

const (
	serialPrefixLength   = 2
	serialSequenceDigits = 4
	maxSerialSequence    = 9999
)

// SerialUnit is one physically tracked instance of an item.
// A unit bound to a project allocation is unavailable.
type SerialUnit struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	ItemId              int             `gorm:"index;not null" json:"item_id"`
	Code                string          `gorm:"size:16;uniqueIndex;not null" json:"code"`
	IsAvailable         *bool           `gorm:"index;not null;default:true" json:"is_available"`
	Price               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	ProjectAllocationId *int            `gorm:"index" json:"project_allocation_id"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// SerialPrefix is the uppercased first two characters of the item name.
func SerialPrefix(itemName string) string {
	runes := []rune(itemName)
	if len(runes) > serialPrefixLength {
		runes = runes[:serialPrefixLength]
	}
	return strings.ToUpper(string(runes))
}

func FormatSerialCode(prefix string, sequence int) string {
	return fmt.Sprintf("%s%0*d", prefix, serialSequenceDigits, sequence)
}

// NextSerialSequence returns the number following the highest code issued for prefix.
// Sequences are shared by every item with the same prefix.
func NextSerialSequence(tx *gorm.DB, prefix string) (int, error) {
	var last SerialUnit
	result := tx.
		Where("SUBSTR(code, 1, ?) = ?", len([]rune(prefix)), prefix).
		Order("code DESC").
		Limit(1).
		Find(&last)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 1, nil
	}
	sequence, err := strconv.Atoi(strings.TrimPrefix(last.Code, prefix))
	if err != nil {
		return 0, fmt.Errorf("malformed serial code %q: %w", last.Code, err)
	}
	return sequence + 1, nil
}

// AllocateSerialUnits creates count new available units for item, priced 0.
func AllocateSerialUnits(tx *gorm.DB, item *Item, count int) ([]SerialUnit, error) {
	if count <= 0 {
		return nil, nil
	}
	prefix := SerialPrefix(item.Name)
	start, err := NextSerialSequence(tx, prefix)
	if err != nil {
		return nil, err
	}
	if start+count-1 > maxSerialSequence {
		return nil, utils.NewValidationError("serial codes for prefix %s are exhausted: %d requested, %d left",
			prefix, count, max(0, maxSerialSequence-start+1))
	}

	units := make([]SerialUnit, 0, count)
	for i := 0; i < count; i++ {
		units = append(units, SerialUnit{
			ItemId:      item.ID,
			Code:        FormatSerialCode(prefix, start+i),
			IsAvailable: utils.NewTrue(),
			Price:       decimal.Zero,
		})
	}
	if err := tx.CreateInBatches(&units, 100).Error; err != nil {
		return nil, err
	}

	config.LogDebug(config.GetLogger(), "serialUnit.go", "AllocateSerialUnits", "allocated serial units", logrus.Fields{
		"item_id": item.ID,
		"count":   count,
		"first":   units[0].Code,
		"last":    units[len(units)-1].Code,
	})
	return units, nil
}

// ReclaimSerialUnits deletes count available units of the item, highest code first.
// Codes are compared as strings, so after a rename the prefix decides the order, not creation time.
// Nothing is deleted when fewer than count units are available.
func ReclaimSerialUnits(tx *gorm.DB, itemId int, count int) ([]SerialUnit, error) {
	if count <= 0 {
		return nil, nil
	}
	var units []SerialUnit
	if err := utils.LockForUpdate(tx).
		Where("item_id = ? AND is_available = ?", itemId, true).
		Order("code DESC").
		Limit(count).
		Find(&units).Error; err != nil {
		return nil, err
	}
	if len(units) < count {
		return nil, utils.NewInsufficientReclaimError(itemId, count, len(units))
	}

	ids := make([]int, 0, len(units))
	for _, unit := range units {
		ids = append(ids, unit.ID)
	}
	if err := tx.Where("id IN ?", ids).Delete(&SerialUnit{}).Error; err != nil {
		return nil, err
	}

	config.LogDebug(config.GetLogger(), "serialUnit.go", "ReclaimSerialUnits", "reclaimed serial units", logrus.Fields{
		"item_id": itemId,
		"count":   count,
	})
	return units, nil
}

// ApplyItemQuantityChange allocates or reclaims the difference between the stored and the new quantity.
func ApplyItemQuantityChange(tx *gorm.DB, item *Item, oldQuantity int, newQuantity int) error {
	switch {
	case newQuantity > oldQuantity:
		_, err := AllocateSerialUnits(tx, item, newQuantity-oldQuantity)
		return err
	case newQuantity < oldQuantity:
		_, err := ReclaimSerialUnits(tx, item.ID, oldQuantity-newQuantity)
		return err
	}
	return nil
}

func CountAvailableUnits(tx *gorm.DB, itemId int) (int64, error) {
	return utils.ResourceCountWhere[SerialUnit](tx, "item_id = ? AND is_available = ? AND project_allocation_id IS NULL", itemId, true)
}

func CountItemUnits(tx *gorm.DB, itemId int) (int64, error) {
	return utils.ResourceCountWhere[SerialUnit](tx, "item_id = ?", itemId)
}

func ListSerialUnits(ctx context.Context, itemId int, onlyAvailable bool) ([]*SerialUnit, error) {
	db := config.GetDB().WithContext(ctx)
	if err := utils.ValidateResourceId[Item](db, itemId); err != nil {
		return nil, err
	}
	dbCtx := db.Where("item_id = ?", itemId)
	if onlyAvailable {
		dbCtx = dbCtx.Where("is_available = ?", true)
	}
	var units []*SerialUnit
	if err := dbCtx.Order("code").Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}
