package models

import (
	"context"
	"time"

	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

type Item struct {
	ID                int       `gorm:"primary_key" json:"id"`
	Name              string    `gorm:"size:30;not null" json:"name"`
	Quantity          int       `gorm:"not null;default:0" json:"quantity"`
	CategoryId        int       `gorm:"index;not null" json:"category_id"`
	AvailableQuantity int       `gorm:"-" json:"available_quantity"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewItem struct {
	Name       string `json:"name" validate:"required,min=2,max=30"`
	Quantity   int    `json:"quantity" validate:"gte=0"`
	CategoryId int    `json:"category_id" validate:"required"`
}

func (input *NewItem) validate(tx *gorm.DB) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Category](tx, input.CategoryId); err != nil {
		return utils.NewFieldValidationError("category_id", "category %d not found", input.CategoryId)
	}
	return nil
}

func CreateItem(ctx context.Context, input *NewItem) (*Item, error) {
	item := Item{
		Name:       input.Name,
		CategoryId: input.CategoryId,
	}

	p := newPipeline("CreateItem")
	p.Validate = []MutationStage{func(tx *gorm.DB) error {
		return input.validate(tx)
	}}
	p.Write = func(tx *gorm.DB) error {
		return tx.Create(&item).Error
	}
	p.Reconcile = []MutationStage{
		func(tx *gorm.DB) error {
			// quantity is written by saveItemQuantity so units and the nominal count move together
			return saveItemQuantity(tx, &item, input.Quantity)
		},
		func(tx *gorm.DB) error {
			_, err := RecomputeCategoryAggregate(tx, item.CategoryId)
			return err
		},
		func(tx *gorm.DB) error {
			return fillAvailableQuantity(tx, &item)
		},
		func(tx *gorm.DB) error {
			return recordMutation(tx, InventoryEventActionCreate, InventoryReferenceTypeItem, item.ID, nil, item, "Created Item "+item.Name)
		},
	}
	p.OnCommit(invalidateCache[Category](item.CategoryId))

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return &item, nil
}

func UpdateItem(ctx context.Context, id int, input *NewItem) (*Item, error) {
	var item, before *Item

	p := newPipeline("UpdateItem")
	p.Capture = []MutationStage{func(tx *gorm.DB) (err error) {
		item, err = utils.FetchModelForUpdate[Item](tx, id)
		if err == nil {
			snapshot := *item
			before = &snapshot
		}
		return err
	}}
	p.Validate = []MutationStage{func(tx *gorm.DB) error {
		return input.validate(tx)
	}}
	p.Write = func(tx *gorm.DB) error {
		item.Name = input.Name
		item.CategoryId = input.CategoryId
		return tx.Model(item).Updates(map[string]interface{}{
			"name":        input.Name,
			"category_id": input.CategoryId,
		}).Error
	}
	p.Reconcile = []MutationStage{
		func(tx *gorm.DB) error {
			return saveItemQuantity(tx, item, input.Quantity)
		},
		func(tx *gorm.DB) error {
			for _, categoryId := range utils.UniqueSlice([]int{before.CategoryId, item.CategoryId}) {
				if _, err := RecomputeCategoryAggregate(tx, categoryId); err != nil {
					return err
				}
			}
			p.OnCommit(invalidateCache[Category](before.CategoryId, item.CategoryId))
			return nil
		},
		func(tx *gorm.DB) error {
			return fillAvailableQuantity(tx, item)
		},
		func(tx *gorm.DB) error {
			return recordMutation(tx, InventoryEventActionUpdate, InventoryReferenceTypeItem, id, before, item, "Updated Item "+item.Name)
		},
	}

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes the item with its units and supplier listings.
// Purchase lines and project allocations protect the item.
func DeleteItem(ctx context.Context, id int) (*Item, error) {
	var item *Item

	p := newPipeline("DeleteItem")
	p.Capture = []MutationStage{func(tx *gorm.DB) (err error) {
		item, err = utils.FetchModelForUpdate[Item](tx, id)
		return err
	}}
	p.Validate = []MutationStage{func(tx *gorm.DB) error {
		lines, err := utils.ResourceCountWhere[PurchaseLine](tx, "item_id = ?", id)
		if err != nil {
			return err
		}
		if lines > 0 {
			return utils.NewValidationError("item %s is referenced by %d purchase line(s)", item.Name, lines)
		}
		allocations, err := utils.ResourceCountWhere[ProjectAllocation](tx, "item_id = ?", id)
		if err != nil {
			return err
		}
		if allocations > 0 {
			return utils.NewValidationError("item %s is allocated to %d project(s)", item.Name, allocations)
		}
		return nil
	}}
	p.Write = func(tx *gorm.DB) error {
		if err := tx.Where("item_id = ?", id).Delete(&SerialUnit{}).Error; err != nil {
			return err
		}
		if err := tx.Where("item_id = ?", id).Delete(&SupplierItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(item).Error
	}
	p.Reconcile = []MutationStage{
		func(tx *gorm.DB) error {
			_, err := RecomputeCategoryAggregate(tx, item.CategoryId)
			p.OnCommit(invalidateCache[Category](item.CategoryId))
			return err
		},
		func(tx *gorm.DB) error {
			return recordMutation(tx, InventoryEventActionDelete, InventoryReferenceTypeItem, id, item, nil, "Deleted Item "+item.Name)
		},
	}

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return item, nil
}

func GetItem(ctx context.Context, id int) (*Item, error) {
	db := config.GetDB().WithContext(ctx)
	item, err := utils.FetchModel[Item](db, id)
	if err != nil {
		return nil, err
	}
	if err := fillAvailableQuantity(db, item); err != nil {
		return nil, err
	}
	return item, nil
}

// categoryId 0 lists every item
func ListItems(ctx context.Context, categoryId int) ([]*Item, error) {
	db := config.GetDB().WithContext(ctx)
	dbCtx := db.Order("name")
	if categoryId > 0 {
		dbCtx = dbCtx.Where("category_id = ?", categoryId)
	}
	var items []*Item
	if err := dbCtx.Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := fillAvailableQuantity(db, item); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func GetItemAvailableQuantity(ctx context.Context, id int) (int, error) {
	db := config.GetDB().WithContext(ctx)
	if err := utils.ValidateResourceId[Item](db, id); err != nil {
		return 0, err
	}
	count, err := CountAvailableUnits(db, id)
	return int(count), err
}

func fillAvailableQuantity(tx *gorm.DB, item *Item) error {
	count, err := CountAvailableUnits(tx, item.ID)
	if err != nil {
		return err
	}
	item.AvailableQuantity = int(count)
	return nil
}

// saveItemQuantity sets the nominal quantity and allocates or reclaims units to match it.
// The caller recomputes the category aggregate.
func saveItemQuantity(tx *gorm.DB, item *Item, newQuantity int) error {
	if newQuantity < 0 {
		available, err := CountAvailableUnits(tx, item.ID)
		if err != nil {
			return err
		}
		return utils.NewInsufficientReclaimError(item.ID, item.Quantity-newQuantity, int(available))
	}
	oldQuantity := item.Quantity
	if oldQuantity == newQuantity {
		return nil
	}
	if err := ApplyItemQuantityChange(tx, item, oldQuantity, newQuantity); err != nil {
		return err
	}
	if err := tx.Model(item).Update("quantity", newQuantity).Error; err != nil {
		return err
	}
	item.Quantity = newQuantity
	return nil
}

// adjustItemQuantity applies a purchase quantity delta to the item and its category.
func adjustItemQuantity(tx *gorm.DB, itemId int, delta int) (*Item, error) {
	item, err := utils.FetchModelForUpdate[Item](tx, itemId)
	if err != nil {
		return nil, err
	}
	if delta == 0 {
		return item, nil
	}
	if err := saveItemQuantity(tx, item, item.Quantity+delta); err != nil {
		return nil, err
	}
	if _, err := RecomputeCategoryAggregate(tx, item.CategoryId); err != nil {
		return nil, err
	}
	return item, nil
}
