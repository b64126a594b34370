package models

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

var vatMultiplier = decimal.RequireFromString("1.13")

type Purchase struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BillNumber        string          `gorm:"size:30;uniqueIndex;not null" json:"bill_number"`
	SupplierId        int             `gorm:"index;not null" json:"supplier_id"`
	TotalPrice        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_price"`
	FinalPriceWithVat decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"final_price_with_vat"`
	PaymentStatus     PaymentStatus   `gorm:"size:10;not null;default:'Pending'" json:"payment_status"`
	PurchaseDate      time.Time       `gorm:"autoCreateTime" json:"purchase_date"`
	Lines             []PurchaseLine  `gorm:"foreignKey:PurchaseId" json:"lines"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseHeaderInput struct {
	BillNumber    string        `json:"bill_number" validate:"required,max=30"`
	SupplierId    int           `json:"supplier_id" validate:"required"`
	PaymentStatus PaymentStatus `json:"payment_status" validate:"omitempty,oneof=Pending Paid"`
}

type NewPurchase struct {
	PurchaseHeaderInput
	Lines []NewPurchaseLine `json:"lines" validate:"dive"`
}

func (input *PurchaseHeaderInput) validate(tx *gorm.DB, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Supplier](tx, input.SupplierId); err != nil {
		return utils.NewFieldValidationError("supplier_id", "supplier %d not found", input.SupplierId)
	}
	return utils.ValidateUnique[Purchase](tx, "bill_number", input.BillNumber, id)
}

func (input *PurchaseHeaderInput) paymentStatus() PaymentStatus {
	if input.PaymentStatus == "" {
		return PaymentStatusPending
	}
	return input.PaymentStatus
}

// CreatePurchase creates the purchase and runs every line through the line pipeline in the same transaction.
func CreatePurchase(ctx context.Context, input *NewPurchase) (*Purchase, error) {
	purchase := Purchase{
		BillNumber:        input.BillNumber,
		SupplierId:        input.SupplierId,
		PaymentStatus:     input.paymentStatus(),
		TotalPrice:        decimal.Zero,
		FinalPriceWithVat: decimal.Zero,
	}

	p := newPipeline("CreatePurchase")
	p.Validate = []MutationStage{func(tx *gorm.DB) error {
		if err := utils.ValidateStruct(input); err != nil {
			return err
		}
		return input.PurchaseHeaderInput.validate(tx, 0)
	}}
	p.Write = func(tx *gorm.DB) error {
		return tx.Omit("Lines").Create(&purchase).Error
	}
	p.Reconcile = []MutationStage{
		func(tx *gorm.DB) error {
			// the header event precedes the line events
			return recordMutation(tx, InventoryEventActionCreate, InventoryReferenceTypePurchase, purchase.ID, nil, purchase, "Created Purchase "+purchase.BillNumber)
		},
		func(tx *gorm.DB) error {
			for i := range input.Lines {
				child, _ := purchaseLineCreatePipeline(purchase.ID, &input.Lines[i])
				if err := p.Cascade(child)(tx); err != nil {
					return fmt.Errorf("line %d: %w", i+1, err)
				}
			}
			return nil
		},
		func(tx *gorm.DB) error {
			return reloadPurchase(tx, &purchase)
		},
	}

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return &purchase, nil
}

// UpdatePurchase edits the header. A supplier change revalidates every existing line.
func UpdatePurchase(ctx context.Context, id int, input *PurchaseHeaderInput) (*Purchase, error) {
	var purchase, before *Purchase

	p := newPipeline("UpdatePurchase")
	p.Capture = []MutationStage{func(tx *gorm.DB) (err error) {
		purchase, err = utils.FetchModelForUpdate[Purchase](tx, id)
		if err != nil {
			return err
		}
		if err := tx.Where("purchase_id = ?", id).Order("id").Find(&purchase.Lines).Error; err != nil {
			return err
		}
		snapshot := *purchase
		before = &snapshot
		return nil
	}}
	p.Validate = []MutationStage{
		func(tx *gorm.DB) error {
			return input.validate(tx, id)
		},
		func(tx *gorm.DB) error {
			if input.SupplierId == before.SupplierId {
				return nil
			}
			next := *purchase
			next.SupplierId = input.SupplierId
			for i := range purchase.Lines {
				if err := ValidatePurchaseLine(tx, &next, &purchase.Lines[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}
	p.Write = func(tx *gorm.DB) error {
		purchase.BillNumber = input.BillNumber
		purchase.SupplierId = input.SupplierId
		purchase.PaymentStatus = input.paymentStatus()
		return tx.Model(purchase).Updates(map[string]interface{}{
			"bill_number":    purchase.BillNumber,
			"supplier_id":    purchase.SupplierId,
			"payment_status": purchase.PaymentStatus,
		}).Error
	}
	p.Reconcile = []MutationStage{func(tx *gorm.DB) error {
		return recordMutation(tx, InventoryEventActionUpdate, InventoryReferenceTypePurchase, id, before, purchase, "Updated Purchase "+purchase.BillNumber)
	}}

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return purchase, nil
}

// DeletePurchase deletes every line first, each through the line pipeline, then the purchase row.
func DeletePurchase(ctx context.Context, id int) (*Purchase, error) {
	var purchase *Purchase

	p := newPipeline("DeletePurchase")
	p.Capture = []MutationStage{func(tx *gorm.DB) (err error) {
		purchase, err = utils.FetchModelForUpdate[Purchase](tx, id)
		if err != nil {
			return err
		}
		return tx.Where("purchase_id = ?", id).Order("id").Find(&purchase.Lines).Error
	}}
	p.Write = func(tx *gorm.DB) error {
		for _, line := range purchase.Lines {
			child, _ := purchaseLineDeletePipeline(line.ID)
			if err := p.Cascade(child)(tx); err != nil {
				return fmt.Errorf("purchase line %d: %w", line.ID, err)
			}
		}
		return tx.Delete(&Purchase{}, id).Error
	}
	p.Reconcile = []MutationStage{func(tx *gorm.DB) error {
		return recordMutation(tx, InventoryEventActionDelete, InventoryReferenceTypePurchase, id, purchase, nil, "Deleted Purchase "+purchase.BillNumber)
	}}

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return purchase, nil
}

func GetPurchase(ctx context.Context, id int) (*Purchase, error) {
	return GetResourceFromDb[Purchase](ctx, id, "Lines")
}

// supplierId 0 lists every purchase
func ListPurchases(ctx context.Context, supplierId int) ([]*Purchase, error) {
	dbCtx := config.GetDB().WithContext(ctx).Order("purchase_date DESC").Order("id DESC")
	if supplierId > 0 {
		dbCtx = dbCtx.Where("supplier_id = ?", supplierId)
	}
	var results []*Purchase
	if err := dbCtx.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// RecomputePurchaseTotals sets the total from the purchase's lines and the VAT-inclusive final price.
func RecomputePurchaseTotals(tx *gorm.DB, purchaseId int) (*Purchase, error) {
	purchase, err := utils.FetchModelForUpdate[Purchase](tx, purchaseId)
	if err != nil {
		return nil, err
	}
	var lines []PurchaseLine
	if err := tx.Where("purchase_id = ?", purchaseId).Order("id").Find(&lines).Error; err != nil {
		return nil, err
	}

	total, final := purchaseTotalsFromLines(lines)

	if err := tx.Model(purchase).Updates(map[string]interface{}{
		"total_price":          total,
		"final_price_with_vat": final,
	}).Error; err != nil {
		return nil, err
	}
	purchase.TotalPrice = total
	purchase.FinalPriceWithVat = final
	purchase.Lines = lines
	return purchase, nil
}

func purchaseTotalsFromLines(lines []PurchaseLine) (decimal.Decimal, decimal.Decimal) {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total, FinalPriceWithVat(total)
}

// FinalPriceWithVat is ceil(total * 1.13).
func FinalPriceWithVat(total decimal.Decimal) decimal.Decimal {
	return total.Mul(vatMultiplier).Ceil()
}

func reloadPurchase(tx *gorm.DB, purchase *Purchase) error {
	fresh, err := utils.FetchModel[Purchase](tx, purchase.ID, "Lines")
	if err != nil {
		return err
	}
	*purchase = *fresh
	return nil
}
