package models

import (
	"github.com/sirupsen/logrus"
	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

// ValidateAllocationAvailability fails when the item lacks the extra units the new quantity needs.
// allocationId is 0 for a new allocation.
func ValidateAllocationAvailability(tx *gorm.DB, allocationId int, itemId int, quantity int) error {
	if quantity == 0 {
		return nil
	}
	assigned := int64(0)
	if allocationId > 0 {
		var err error
		if assigned, err = CountBoundUnits(tx, allocationId); err != nil {
			return err
		}
	}
	available, err := CountAvailableUnits(tx, itemId)
	if err != nil {
		return err
	}
	additional := int64(quantity) - assigned
	if additional > available {
		return utils.NewInsufficientAssignmentError(itemId, quantity, int(assigned), int(available))
	}
	return nil
}

// SyncAllocationUnits binds or releases units until the bound count equals the allocation quantity.
func SyncAllocationUnits(tx *gorm.DB, allocation *ProjectAllocation) error {
	bound, err := CountBoundUnits(tx, allocation.ID)
	if err != nil {
		return err
	}
	switch {
	case int64(allocation.Quantity) > bound:
		if _, err := BindAvailableUnits(tx, allocation, allocation.Quantity-int(bound)); err != nil {
			return err
		}
	case int64(allocation.Quantity) < bound:
		if _, err := ReleaseBoundUnits(tx, allocation.ID, int(bound)-allocation.Quantity); err != nil {
			return err
		}
	}
	return AssertAllocationBinding(tx, allocation)
}

// BindAvailableUnits marks count available units of the allocation's item, lowest code first, as borrowed.
func BindAvailableUnits(tx *gorm.DB, allocation *ProjectAllocation, count int) ([]int, error) {
	if count <= 0 {
		return nil, nil
	}
	var ids []int
	if err := utils.LockForUpdate(tx).
		Model(&SerialUnit{}).
		Where("item_id = ? AND is_available = ? AND project_allocation_id IS NULL", allocation.ItemId, true).
		Order("code ASC").
		Limit(count).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) < count {
		assigned, err := CountBoundUnits(tx, allocation.ID)
		if err != nil {
			return nil, err
		}
		return nil, utils.NewInsufficientAssignmentError(allocation.ItemId, allocation.Quantity, int(assigned), len(ids))
	}
	if err := tx.Model(&SerialUnit{}).Where("id IN ?", ids).Updates(map[string]interface{}{
		"is_available":          false,
		"project_allocation_id": allocation.ID,
	}).Error; err != nil {
		return nil, err
	}

	config.LogDebug(config.GetLogger(), "stockCommands_projectAllocation.go", "BindAvailableUnits", "bound serial units", logrus.Fields{
		"allocation_id": allocation.ID,
		"item_id":       allocation.ItemId,
		"count":         len(ids),
	})
	return ids, nil
}

// ReleaseBoundUnits returns count bound units, highest code first, to available.
// A negative count releases every bound unit.
func ReleaseBoundUnits(tx *gorm.DB, allocationId int, count int) ([]int, error) {
	if count == 0 {
		return nil, nil
	}
	dbCtx := utils.LockForUpdate(tx).
		Model(&SerialUnit{}).
		Where("project_allocation_id = ?", allocationId).
		Order("code DESC")
	if count > 0 {
		dbCtx = dbCtx.Limit(count)
	}
	var ids []int
	if err := dbCtx.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := tx.Model(&SerialUnit{}).Where("id IN ?", ids).Updates(map[string]interface{}{
		"is_available":          true,
		"project_allocation_id": nil,
	}).Error; err != nil {
		return nil, err
	}

	config.LogDebug(config.GetLogger(), "stockCommands_projectAllocation.go", "ReleaseBoundUnits", "released serial units", logrus.Fields{
		"allocation_id": allocationId,
		"count":         len(ids),
	})
	return ids, nil
}

// AssertAllocationBinding fails with a ConsistencyError unless exactly Quantity units of the
// allocation's own item are bound to it.
func AssertAllocationBinding(tx *gorm.DB, allocation *ProjectAllocation) error {
	if err := assertBoundCount(tx, allocation, allocation.Quantity); err != nil {
		return err
	}
	foreign, err := utils.ResourceCountWhere[SerialUnit](tx, "project_allocation_id = ? AND item_id <> ?", allocation.ID, allocation.ItemId)
	if err != nil {
		return err
	}
	if foreign > 0 {
		return &utils.ConsistencyError{
			Entity:   "project allocation",
			Id:       allocation.ID,
			Expected: 0,
			Actual:   int(foreign),
		}
	}
	return nil
}

func assertBoundCount(tx *gorm.DB, allocation *ProjectAllocation, expected int) error {
	bound, err := CountBoundUnits(tx, allocation.ID)
	if err != nil {
		return err
	}
	if int(bound) != expected {
		return &utils.ConsistencyError{
			Entity:   "project allocation",
			Id:       allocation.ID,
			Expected: expected,
			Actual:   int(bound),
		}
	}
	return nil
}

func CountBoundUnits(tx *gorm.DB, allocationId int) (int64, error) {
	return utils.ResourceCountWhere[SerialUnit](tx, "project_allocation_id = ?", allocationId)
}
