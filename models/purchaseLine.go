package models

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

type PurchaseLine struct {
	ID         int             `gorm:"primary_key" json:"id"`
	PurchaseId int             `gorm:"index;not null" json:"purchase_id"`
	ItemId     int             `gorm:"index;not null" json:"item_id"`
	CategoryId int             `gorm:"index;not null" json:"category_id"`
	Quantity   int             `gorm:"not null;default:0" json:"quantity"`
	Price      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"price"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPurchaseLine struct {
	ItemId     int             `json:"item_id" validate:"required"`
	CategoryId int             `json:"category_id" validate:"required"`
	Quantity   int             `json:"quantity" validate:"gte=1"`
	Price      decimal.Decimal `json:"price"`
}

func (input *NewPurchaseLine) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Price.IsNegative() {
		return utils.NewFieldValidationError("price", "price cannot be negative")
	}
	return nil
}

func CreatePurchaseLine(ctx context.Context, purchaseId int, input *NewPurchaseLine) (*PurchaseLine, error) {
	p, line := purchaseLineCreatePipeline(purchaseId, input)
	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return line, nil
}

func UpdatePurchaseLine(ctx context.Context, id int, input *NewPurchaseLine) (*PurchaseLine, error) {
	var line, before *PurchaseLine
	var purchase *Purchase

	p := newPipeline("UpdatePurchaseLine")
	p.Capture = []MutationStage{func(tx *gorm.DB) (err error) {
		line, err = utils.FetchModelForUpdate[PurchaseLine](tx, id)
		if err != nil {
			return err
		}
		snapshot := *line
		before = &snapshot
		purchase, err = utils.FetchModelForUpdate[Purchase](tx, line.PurchaseId)
		return err
	}}
	p.Validate = []MutationStage{
		func(tx *gorm.DB) error {
			return input.validate()
		},
		func(tx *gorm.DB) error {
			line.ItemId = input.ItemId
			line.CategoryId = input.CategoryId
			line.Quantity = input.Quantity
			line.Price = input.Price
			return ValidatePurchaseLine(tx, purchase, line)
		},
	}
	p.Write = func(tx *gorm.DB) error {
		return tx.Model(line).Updates(map[string]interface{}{
			"item_id":     line.ItemId,
			"category_id": line.CategoryId,
			"quantity":    line.Quantity,
			"price":       line.Price,
		}).Error
	}
	p.Reconcile = []MutationStage{
		func(tx *gorm.DB) error {
			p.OnCommit(invalidateCache[Category](before.CategoryId, line.CategoryId))
			return ApplyPurchaseLineUpdated(tx, before, line)
		},
		func(tx *gorm.DB) error {
			_, err := RecomputePurchaseTotals(tx, line.PurchaseId)
			return err
		},
		func(tx *gorm.DB) error {
			return recordMutation(tx, InventoryEventActionUpdate, InventoryReferenceTypePurchaseLine, id, before, line,
				fmt.Sprintf("Updated Purchase Line of %s", purchase.BillNumber))
		},
	}

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return line, nil
}

func DeletePurchaseLine(ctx context.Context, id int) (*PurchaseLine, error) {
	p, line := purchaseLineDeletePipeline(id)
	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return line, nil
}

func purchaseLineCreatePipeline(purchaseId int, input *NewPurchaseLine) (*MutationPipeline, *PurchaseLine) {
	line := PurchaseLine{
		PurchaseId: purchaseId,
		ItemId:     input.ItemId,
		CategoryId: input.CategoryId,
		Quantity:   input.Quantity,
		Price:      input.Price,
	}
	var purchase *Purchase

	p := newPipeline("CreatePurchaseLine")
	p.Capture = []MutationStage{func(tx *gorm.DB) (err error) {
		purchase, err = utils.FetchModelForUpdate[Purchase](tx, purchaseId)
		return err
	}}
	p.Validate = []MutationStage{
		func(tx *gorm.DB) error {
			return input.validate()
		},
		func(tx *gorm.DB) error {
			return ValidatePurchaseLine(tx, purchase, &line)
		},
	}
	p.Write = func(tx *gorm.DB) error {
		return tx.Create(&line).Error
	}
	p.Reconcile = []MutationStage{
		func(tx *gorm.DB) error {
			p.OnCommit(invalidateCache[Category](line.CategoryId))
			return ApplyPurchaseLineCreated(tx, &line)
		},
		func(tx *gorm.DB) error {
			_, err := RecomputePurchaseTotals(tx, purchaseId)
			return err
		},
		func(tx *gorm.DB) error {
			return recordMutation(tx, InventoryEventActionCreate, InventoryReferenceTypePurchaseLine, line.ID, nil, line,
				fmt.Sprintf("Created Purchase Line of %s", purchase.BillNumber))
		},
	}
	return p, &line
}

// the returned line is filled once the capture stage has run
func purchaseLineDeletePipeline(id int) (*MutationPipeline, *PurchaseLine) {
	line := &PurchaseLine{}
	var purchase *Purchase

	p := newPipeline("DeletePurchaseLine")
	p.Capture = []MutationStage{func(tx *gorm.DB) error {
		captured, err := utils.FetchModelForUpdate[PurchaseLine](tx, id)
		if err != nil {
			return err
		}
		*line = *captured
		purchase, err = utils.FetchModelForUpdate[Purchase](tx, line.PurchaseId)
		return err
	}}
	p.Write = func(tx *gorm.DB) error {
		return tx.Delete(line).Error
	}
	p.Reconcile = []MutationStage{
		func(tx *gorm.DB) error {
			p.OnCommit(invalidateCache[Category](line.CategoryId))
			return ApplyPurchaseLineDeleted(tx, line)
		},
		func(tx *gorm.DB) error {
			_, err := RecomputePurchaseTotals(tx, line.PurchaseId)
			return err
		},
		func(tx *gorm.DB) error {
			return recordMutation(tx, InventoryEventActionDelete, InventoryReferenceTypePurchaseLine, id, line, nil,
				fmt.Sprintf("Deleted Purchase Line of %s", purchase.BillNumber))
		},
	}
	return p, line
}
