package models

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

type Category struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:30;uniqueIndex;not null" json:"name"`
	Quantity  int       `gorm:"not null;default:0" json:"quantity"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCategory struct {
	Name string `json:"name" validate:"required,max=30"`
}

func (input *NewCategory) validate(tx *gorm.DB, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	return utils.ValidateUnique[Category](tx, "name", input.Name, id)
}

func CreateCategory(ctx context.Context, input *NewCategory) (*Category, error) {
	category := Category{Name: input.Name}

	p := newPipeline("CreateCategory")
	p.Validate = []MutationStage{func(tx *gorm.DB) error {
		return input.validate(tx, 0)
	}}
	p.Write = func(tx *gorm.DB) error {
		return tx.Create(&category).Error
	}
	p.Reconcile = []MutationStage{func(tx *gorm.DB) error {
		return recordMutation(tx, InventoryEventActionCreate, InventoryReferenceTypeCategory, category.ID, nil, category, "Created Category "+category.Name)
	}}

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return &category, nil
}

// Only the name is editable; the quantity is derived from the category's items.
func UpdateCategory(ctx context.Context, id int, input *NewCategory) (*Category, error) {
	var category, before *Category

	p := newPipeline("UpdateCategory")
	p.Capture = []MutationStage{func(tx *gorm.DB) (err error) {
		category, err = utils.FetchModelForUpdate[Category](tx, id)
		if err == nil {
			snapshot := *category
			before = &snapshot
		}
		return err
	}}
	p.Validate = []MutationStage{func(tx *gorm.DB) error {
		return input.validate(tx, id)
	}}
	p.Write = func(tx *gorm.DB) error {
		category.Name = input.Name
		return tx.Model(category).Update("name", input.Name).Error
	}
	p.Reconcile = []MutationStage{func(tx *gorm.DB) error {
		return recordMutation(tx, InventoryEventActionUpdate, InventoryReferenceTypeCategory, id, before, category, "Updated Category "+category.Name)
	}}
	p.OnCommit(invalidateCache[Category](id))

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return category, nil
}

// A category holding items cannot be deleted.
func DeleteCategory(ctx context.Context, id int) (*Category, error) {
	var category *Category

	p := newPipeline("DeleteCategory")
	p.Capture = []MutationStage{func(tx *gorm.DB) (err error) {
		category, err = utils.FetchModelForUpdate[Category](tx, id)
		return err
	}}
	p.Validate = []MutationStage{func(tx *gorm.DB) error {
		count, err := utils.ResourceCountWhere[Item](tx, "category_id = ?", id)
		if err != nil {
			return err
		}
		if count > 0 {
			return utils.NewValidationError("category %s still has %d item(s)", category.Name, count)
		}
		return nil
	}}
	p.Write = func(tx *gorm.DB) error {
		return tx.Delete(category).Error
	}
	p.Reconcile = []MutationStage{func(tx *gorm.DB) error {
		return recordMutation(tx, InventoryEventActionDelete, InventoryReferenceTypeCategory, id, category, nil, "Deleted Category "+category.Name)
	}}
	p.OnCommit(invalidateCache[Category](id))

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return category, nil
}

func GetCategory(ctx context.Context, id int) (*Category, error) {
	return GetResource[Category](ctx, id)
}

func ListCategories(ctx context.Context) ([]*Category, error) {
	return ListAllResource[Category](ctx, "name")
}

// RecomputeCategory rewrites the stored category quantity from its items.
func RecomputeCategory(ctx context.Context, id int) (*Category, error) {
	var category *Category

	p := newPipeline("RecomputeCategory")
	p.Write = func(tx *gorm.DB) (err error) {
		category, err = RecomputeCategoryAggregate(tx, id)
		return err
	}
	p.OnCommit(invalidateCache[Category](id))

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return category, nil
}

// RecomputeCategoryAggregate sets category.quantity to the sum of its items' quantities.
// Running it twice in a row yields the same value.
func RecomputeCategoryAggregate(tx *gorm.DB, categoryId int) (*Category, error) {
	category, err := utils.FetchModelForUpdate[Category](tx, categoryId)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := tx.Model(&Item{}).
		Where("category_id = ?", categoryId).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error; err != nil {
		return nil, err
	}

	if category.Quantity != int(total) {
		if err := tx.Model(category).Update("quantity", int(total)).Error; err != nil {
			return nil, err
		}
		config.LogDebug(config.GetLogger(), "category.go", "RecomputeCategoryAggregate", "category quantity changed", logrus.Fields{
			"category_id": categoryId,
			"old":         category.Quantity,
			"new":         total,
		})
		category.Quantity = int(total)
	}
	return category, nil
}
