package models

import (
	"errors"

	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

// ValidatePurchaseLine checks a line against its item, category and the purchase's supplier listing.
// Checks run in order and the first failure is returned.
func ValidatePurchaseLine(tx *gorm.DB, purchase *Purchase, line *PurchaseLine) error {
	if purchase == nil || line.PurchaseId == 0 || line.ItemId == 0 || line.CategoryId == 0 {
		return utils.NewValidationError("purchase, item and category are required")
	}

	item, err := utils.FetchModel[Item](tx, line.ItemId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return utils.NewFieldValidationError("item_id", "item %d not found", line.ItemId)
	} else if err != nil {
		return err
	}

	if item.CategoryId != line.CategoryId {
		itemCategory, err := categoryName(tx, item.CategoryId)
		if err != nil {
			return err
		}
		lineCategory, err := categoryName(tx, line.CategoryId)
		if err != nil {
			return err
		}
		return utils.NewFieldValidationError("category_id", "item %s belongs to category %s, not %s", item.Name, itemCategory, lineCategory)
	}

	supplierItem, err := findSupplierItem(tx, purchase.SupplierId, line.ItemId)
	if err != nil {
		return err
	}
	if supplierItem == nil {
		var supplier Supplier
		if err := tx.Select("name").Limit(1).Find(&supplier, purchase.SupplierId).Error; err != nil {
			return err
		}
		return utils.NewFieldValidationError("item_id", "supplier %s doesn't supply item %s", supplier.Name, item.Name)
	}

	if !line.Price.Equal(supplierItem.Price) {
		return utils.NewFieldValidationError("price", "price mismatch: item %s is listed at %s, line has %s",
			item.Name, supplierItem.Price.String(), line.Price.String())
	}
	return nil
}

// ValidateSupplierItemUnique fails when another listing exists for the same supplier and item.
func ValidateSupplierItemUnique(tx *gorm.DB, supplierId int, itemId int, exceptId int) error {
	condition := "supplier_id = ? AND item_id = ?"
	values := []interface{}{supplierId, itemId}
	if exceptId > 0 {
		condition += " AND NOT id = ?"
		values = append(values, exceptId)
	}
	count, err := utils.ResourceCountWhere[SupplierItem](tx, condition, values...)
	if err != nil {
		return err
	}
	if count > 0 {
		return utils.NewValidationError("supplier %d already lists item %d", supplierId, itemId)
	}
	return nil
}

// returns nil when the supplier does not list the item
func findSupplierItem(tx *gorm.DB, supplierId int, itemId int) (*SupplierItem, error) {
	var supplierItem SupplierItem
	result := tx.Where("supplier_id = ? AND item_id = ?", supplierId, itemId).Limit(1).Find(&supplierItem)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &supplierItem, nil
}

func categoryName(tx *gorm.DB, id int) (string, error) {
	var category Category
	result := tx.Select("name").Limit(1).Find(&category, id)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return "", utils.NewFieldValidationError("category_id", "category %d not found", id)
	}
	return category.Name, nil
}
