package models

import (
	"context"
	"time"

	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

type Supplier struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:30;not null" json:"name"`
	Address   string    `gorm:"size:40" json:"address"`
	ContactNo string    `gorm:"size:15" json:"contact_no"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name      string `json:"name" validate:"required,max=30"`
	Address   string `json:"address" validate:"max=40"`
	ContactNo string `json:"contact_no" validate:"max=15"`
}

func (input *NewSupplier) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.ContactNo != "" {
		if err := utils.ValidatePhoneNumber(input.ContactNo, config.DefaultPhoneRegion()); err != nil {
			return utils.NewFieldValidationError("contact_no", "invalid contact number %s: %v", input.ContactNo, err)
		}
	}
	return nil
}

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	supplier := Supplier{
		Name:      input.Name,
		Address:   input.Address,
		ContactNo: input.ContactNo,
	}

	p := newPipeline("CreateSupplier")
	p.Write = func(tx *gorm.DB) error {
		return tx.Create(&supplier).Error
	}
	p.Reconcile = []MutationStage{func(tx *gorm.DB) error {
		return recordMutation(tx, InventoryEventActionCreate, InventoryReferenceTypeSupplier, supplier.ID, nil, supplier, "Created Supplier "+supplier.Name)
	}}

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return &supplier, nil
}

func UpdateSupplier(ctx context.Context, id int, input *NewSupplier) (*Supplier, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	var supplier, before *Supplier

	p := newPipeline("UpdateSupplier")
	p.Capture = []MutationStage{func(tx *gorm.DB) (err error) {
		supplier, err = utils.FetchModelForUpdate[Supplier](tx, id)
		if err == nil {
			snapshot := *supplier
			before = &snapshot
		}
		return err
	}}
	p.Write = func(tx *gorm.DB) error {
		supplier.Name = input.Name
		supplier.Address = input.Address
		supplier.ContactNo = input.ContactNo
		return tx.Model(supplier).Updates(map[string]interface{}{
			"name":       input.Name,
			"address":    input.Address,
			"contact_no": input.ContactNo,
		}).Error
	}
	p.Reconcile = []MutationStage{func(tx *gorm.DB) error {
		return recordMutation(tx, InventoryEventActionUpdate, InventoryReferenceTypeSupplier, id, before, supplier, "Updated Supplier "+supplier.Name)
	}}
	p.OnCommit(invalidateCache[Supplier](id))

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return supplier, nil
}

// DeleteSupplier removes the supplier and its item listings.
// A supplier with purchases cannot be deleted.
func DeleteSupplier(ctx context.Context, id int) (*Supplier, error) {
	var supplier *Supplier

	p := newPipeline("DeleteSupplier")
	p.Capture = []MutationStage{func(tx *gorm.DB) (err error) {
		supplier, err = utils.FetchModelForUpdate[Supplier](tx, id)
		return err
	}}
	p.Validate = []MutationStage{func(tx *gorm.DB) error {
		count, err := utils.ResourceCountWhere[Purchase](tx, "supplier_id = ?", id)
		if err != nil {
			return err
		}
		if count > 0 {
			return utils.NewValidationError("supplier %s has %d purchase(s)", supplier.Name, count)
		}
		return nil
	}}
	p.Write = func(tx *gorm.DB) error {
		if err := tx.Where("supplier_id = ?", id).Delete(&SupplierItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(supplier).Error
	}
	p.Reconcile = []MutationStage{func(tx *gorm.DB) error {
		return recordMutation(tx, InventoryEventActionDelete, InventoryReferenceTypeSupplier, id, supplier, nil, "Deleted Supplier "+supplier.Name)
	}}
	p.OnCommit(invalidateCache[Supplier](id))

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return supplier, nil
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	return GetResource[Supplier](ctx, id)
}

func ListSuppliers(ctx context.Context) ([]*Supplier, error) {
	return ListAllResource[Supplier](ctx, "name")
}
