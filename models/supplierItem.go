package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

// SupplierItem is the price at which a supplier lists an item.
type SupplierItem struct {
	ID         int             `gorm:"primary_key" json:"id"`
	SupplierId int             `gorm:"not null;uniqueIndex:idx_supplier_item" json:"supplier_id"`
	ItemId     int             `gorm:"not null;uniqueIndex:idx_supplier_item;index" json:"item_id"`
	Price      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"price"`
	SupplyDate time.Time       `gorm:"autoCreateTime" json:"supply_date"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplierItem struct {
	SupplierId int             `json:"supplier_id" validate:"required"`
	ItemId     int             `json:"item_id" validate:"required"`
	Price      decimal.Decimal `json:"price"`
}

func (input *NewSupplierItem) validate(tx *gorm.DB, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Price.IsNegative() {
		return utils.NewFieldValidationError("price", "price cannot be negative")
	}
	if err := utils.ValidateResourceId[Supplier](tx, input.SupplierId); err != nil {
		return utils.NewFieldValidationError("supplier_id", "supplier %d not found", input.SupplierId)
	}
	if err := utils.ValidateResourceId[Item](tx, input.ItemId); err != nil {
		return utils.NewFieldValidationError("item_id", "item %d not found", input.ItemId)
	}
	return ValidateSupplierItemUnique(tx, input.SupplierId, input.ItemId, id)
}

func CreateSupplierItem(ctx context.Context, input *NewSupplierItem) (*SupplierItem, error) {
	supplierItem := SupplierItem{
		SupplierId: input.SupplierId,
		ItemId:     input.ItemId,
		Price:      input.Price,
	}

	p := newPipeline("CreateSupplierItem")
	p.Validate = []MutationStage{func(tx *gorm.DB) error {
		return input.validate(tx, 0)
	}}
	p.Write = func(tx *gorm.DB) error {
		return tx.Create(&supplierItem).Error
	}
	p.Reconcile = []MutationStage{func(tx *gorm.DB) error {
		return recordMutation(tx, InventoryEventActionCreate, InventoryReferenceTypeSupplierItem, supplierItem.ID, nil, supplierItem, "Created Supplier Item")
	}}

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return &supplierItem, nil
}

// Existing purchase lines keep their price; only new or edited lines are checked against the new one.
func UpdateSupplierItem(ctx context.Context, id int, input *NewSupplierItem) (*SupplierItem, error) {
	var supplierItem, before *SupplierItem

	p := newPipeline("UpdateSupplierItem")
	p.Capture = []MutationStage{func(tx *gorm.DB) (err error) {
		supplierItem, err = utils.FetchModelForUpdate[SupplierItem](tx, id)
		if err == nil {
			snapshot := *supplierItem
			before = &snapshot
		}
		return err
	}}
	p.Validate = []MutationStage{func(tx *gorm.DB) error {
		return input.validate(tx, id)
	}}
	p.Write = func(tx *gorm.DB) error {
		supplierItem.SupplierId = input.SupplierId
		supplierItem.ItemId = input.ItemId
		supplierItem.Price = input.Price
		return tx.Model(supplierItem).Updates(map[string]interface{}{
			"supplier_id": input.SupplierId,
			"item_id":     input.ItemId,
			"price":       input.Price,
		}).Error
	}
	p.Reconcile = []MutationStage{func(tx *gorm.DB) error {
		return recordMutation(tx, InventoryEventActionUpdate, InventoryReferenceTypeSupplierItem, id, before, supplierItem, "Updated Supplier Item")
	}}

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return supplierItem, nil
}

func DeleteSupplierItem(ctx context.Context, id int) (*SupplierItem, error) {
	var supplierItem *SupplierItem

	p := newPipeline("DeleteSupplierItem")
	p.Capture = []MutationStage{func(tx *gorm.DB) (err error) {
		supplierItem, err = utils.FetchModelForUpdate[SupplierItem](tx, id)
		return err
	}}
	p.Write = func(tx *gorm.DB) error {
		return tx.Delete(supplierItem).Error
	}
	p.Reconcile = []MutationStage{func(tx *gorm.DB) error {
		return recordMutation(tx, InventoryEventActionDelete, InventoryReferenceTypeSupplierItem, id, supplierItem, nil, "Deleted Supplier Item")
	}}

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return supplierItem, nil
}

// supplierId 0 lists every supplier's items
func ListSupplierItems(ctx context.Context, supplierId int) ([]*SupplierItem, error) {
	dbCtx := config.GetDB().WithContext(ctx).Order("supplier_id").Order("item_id")
	if supplierId > 0 {
		dbCtx = dbCtx.Where("supplier_id = ?", supplierId)
	}
	var results []*SupplierItem
	if err := dbCtx.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
