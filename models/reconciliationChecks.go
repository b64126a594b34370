package models

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

const (
	CheckTypeItemUnits         = "ITEM_UNITS"
	CheckTypeCategoryQuantity  = "CATEGORY_QUANTITY"
	CheckTypePurchaseTotals    = "PURCHASE_TOTALS"
	CheckTypeAllocationBinding = "ALLOCATION_BINDING"
	CheckTypeUnitAvailability  = "UNIT_AVAILABILITY"
)

type ReconciliationSummary struct {
	CorrelationId string                  `json:"correlation_id"`
	Findings      []*ReconciliationReport `json:"findings"`
	Repaired      int                     `json:"repaired"`
}

type countMismatch struct {
	EntityId int
	Expected int
	Actual   int
}

// RunReconciliationChecks scans the whole store for drift in derived state and
// writes one reconciliation_reports row per finding.
// With repair set, category quantities and purchase totals are recomputed in one pipeline.
// Unit counts and allocation bindings are only reported.
func RunReconciliationChecks(ctx context.Context, repair bool) (*ReconciliationSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db := config.GetDB().WithContext(ctx)
	logger := config.GetLogger()

	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}
	summary := &ReconciliationSummary{CorrelationId: cid}
	add := func(checkType string, entityType string, entityId int, details string) {
		summary.Findings = append(summary.Findings, &ReconciliationReport{
			CheckType:     checkType,
			EntityType:    entityType,
			EntityId:      entityId,
			Details:       details,
			CorrelationId: cid,
		})
	}

	// 1) item.quantity vs count(serial_units)
	var itemMismatches []countMismatch
	if err := db.Raw(`
		SELECT i.id AS entity_id, i.quantity AS expected, COUNT(su.id) AS actual
		FROM items i
		LEFT JOIN serial_units su ON su.item_id = i.id
		GROUP BY i.id, i.quantity
		HAVING i.quantity <> COUNT(su.id)
	`).Scan(&itemMismatches).Error; err != nil {
		return nil, err
	}
	for _, m := range itemMismatches {
		add(CheckTypeItemUnits, "Item", m.EntityId, fmt.Sprintf("quantity=%d != count(serial_units)=%d", m.Expected, m.Actual))
	}

	// 2) category.quantity vs sum(items.quantity)
	var categoryMismatches []countMismatch
	if err := db.Raw(`
		SELECT c.id AS entity_id, c.quantity AS actual, COALESCE(SUM(i.quantity), 0) AS expected
		FROM categories c
		LEFT JOIN items i ON i.category_id = c.id
		GROUP BY c.id, c.quantity
		HAVING c.quantity <> COALESCE(SUM(i.quantity), 0)
	`).Scan(&categoryMismatches).Error; err != nil {
		return nil, err
	}
	for _, m := range categoryMismatches {
		add(CheckTypeCategoryQuantity, "Category", m.EntityId, fmt.Sprintf("quantity=%d != sum(items.quantity)=%d", m.Actual, m.Expected))
	}

	// 3) purchase totals vs lines
	var purchases []Purchase
	if err := db.Preload("Lines").Order("id").Find(&purchases).Error; err != nil {
		return nil, err
	}
	for _, purchase := range purchases {
		total, final := purchaseTotalsFromLines(purchase.Lines)
		if !total.Equal(purchase.TotalPrice) || !final.Equal(purchase.FinalPriceWithVat) {
			add(CheckTypePurchaseTotals, "Purchase", purchase.ID, fmt.Sprintf("total_price=%s final_price_with_vat=%s, lines give %s and %s",
				purchase.TotalPrice.String(), purchase.FinalPriceWithVat.String(), total.String(), final.String()))
		}
	}

	// 4) allocation.quantity vs bound units
	var allocationMismatches []countMismatch
	if err := db.Raw(`
		SELECT a.id AS entity_id, a.quantity AS expected, COUNT(su.id) AS actual
		FROM project_allocations a
		LEFT JOIN serial_units su ON su.project_allocation_id = a.id
		GROUP BY a.id, a.quantity
		HAVING a.quantity <> COUNT(su.id)
	`).Scan(&allocationMismatches).Error; err != nil {
		return nil, err
	}
	for _, m := range allocationMismatches {
		add(CheckTypeAllocationBinding, "ProjectAllocation", m.EntityId, fmt.Sprintf("quantity=%d != bound units=%d", m.Expected, m.Actual))
	}

	// 5) availability flag vs binding
	var inconsistentUnits []SerialUnit
	if err := db.
		Where("(project_allocation_id IS NULL AND is_available = ?) OR (project_allocation_id IS NOT NULL AND is_available = ?)", false, true).
		Order("code").
		Find(&inconsistentUnits).Error; err != nil {
		return nil, err
	}
	for _, unit := range inconsistentUnits {
		bound := "unbound"
		if unit.ProjectAllocationId != nil {
			bound = fmt.Sprintf("bound to allocation %d", *unit.ProjectAllocationId)
		}
		add(CheckTypeUnitAvailability, "SerialUnit", unit.ID, fmt.Sprintf("%s is %s but is_available=%t", unit.Code, bound, *unit.IsAvailable))
	}

	if repair {
		if err := repairAggregates(ctx, summary); err != nil {
			return nil, err
		}
	}

	if len(summary.Findings) > 0 {
		if err := db.CreateInBatches(summary.Findings, 100).Error; err != nil {
			return nil, err
		}
	}

	config.LogDebug(logger, "reconciliationChecks.go", "RunReconciliationChecks", "checks completed", logrus.Fields{
		"correlation_id": cid,
		"findings":       len(summary.Findings),
		"repaired":       summary.Repaired,
	})
	return summary, nil
}

func repairAggregates(ctx context.Context, summary *ReconciliationSummary) error {
	p := newPipeline("RepairAggregates")
	p.Write = func(tx *gorm.DB) error {
		for _, finding := range summary.Findings {
			switch finding.CheckType {
			case CheckTypeCategoryQuantity:
				if _, err := RecomputeCategoryAggregate(tx, finding.EntityId); err != nil {
					return err
				}
				p.OnCommit(invalidateCache[Category](finding.EntityId))
			case CheckTypePurchaseTotals:
				if _, err := RecomputePurchaseTotals(tx, finding.EntityId); err != nil {
					return err
				}
			default:
				continue
			}
			finding.Repaired = true
			summary.Repaired++
		}
		return nil
	}
	return p.Run(ctx)
}
