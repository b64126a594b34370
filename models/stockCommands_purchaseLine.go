package models

import (
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

// ApplyPurchaseLineCreated adds the line quantity to its item and prices the new stock.
func ApplyPurchaseLineCreated(tx *gorm.DB, line *PurchaseLine) error {
	if _, err := adjustItemQuantity(tx, line.ItemId, line.Quantity); err != nil {
		return err
	}
	_, err := RepriceAvailableUnits(tx, line.ItemId, line.Quantity, line.Price)
	return err
}

// ApplyPurchaseLineUpdated applies the quantity delta against the captured line and reprices.
// When the item changed, the old item loses the old quantity and the new item gains the new one.
func ApplyPurchaseLineUpdated(tx *gorm.DB, before *PurchaseLine, line *PurchaseLine) error {
	if before.ItemId != line.ItemId {
		if _, err := adjustItemQuantity(tx, before.ItemId, -before.Quantity); err != nil {
			return err
		}
		if _, err := adjustItemQuantity(tx, line.ItemId, line.Quantity); err != nil {
			return err
		}
	} else if _, err := adjustItemQuantity(tx, line.ItemId, line.Quantity-before.Quantity); err != nil {
		return err
	}
	_, err := RepriceAvailableUnits(tx, line.ItemId, line.Quantity, line.Price)
	return err
}

// ApplyPurchaseLineDeleted subtracts the line quantity from its item.
func ApplyPurchaseLineDeleted(tx *gorm.DB, line *PurchaseLine) error {
	_, err := adjustItemQuantity(tx, line.ItemId, -line.Quantity)
	return err
}

// RepriceAvailableUnits sets price on up to count available units of the item, lowest code first.
// Returns how many units were repriced.
func RepriceAvailableUnits(tx *gorm.DB, itemId int, count int, price decimal.Decimal) (int, error) {
	if count <= 0 {
		return 0, nil
	}
	var ids []int
	if err := utils.LockForUpdate(tx).
		Model(&SerialUnit{}).
		Where("item_id = ? AND is_available = ?", itemId, true).
		Order("code ASC").
		Limit(count).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := tx.Model(&SerialUnit{}).Where("id IN ?", ids).Update("price", price).Error; err != nil {
		return 0, err
	}

	config.LogDebug(config.GetLogger(), "stockCommands_purchaseLine.go", "RepriceAvailableUnits", "repriced serial units", logrus.Fields{
		"item_id": itemId,
		"count":   len(ids),
		"price":   price.String(),
	})
	return len(ids), nil
}
