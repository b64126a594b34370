package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/models"
	"github.com/stockroom/inventory_backend/utils"
)

// StockReportRow is one item's stock position as seen through its serial units.
type StockReportRow struct {
	ItemId         int             `json:"item_id"`
	ItemName       string          `json:"item_name"`
	CategoryId     int             `json:"category_id"`
	CategoryName   string          `json:"category_name"`
	Quantity       int             `json:"quantity"`
	UnitCount      int             `json:"unit_count"`
	AvailableCount int             `json:"available_count"`
	BorrowedCount  int             `json:"borrowed_count"`
	AvailableValue decimal.Decimal `json:"available_value"`
	TotalValue     decimal.Decimal `json:"total_value"`
}

// Drifted reports whether the nominal quantity disagrees with the units on hand.
func (r *StockReportRow) Drifted() bool {
	return r.Quantity != r.UnitCount
}

func (r *StockReportRow) GetCellValues() []interface{} {
	return []interface{}{
		r.ItemName,
		r.CategoryName,
		r.Quantity,
		r.UnitCount,
		r.AvailableCount,
		r.BorrowedCount,
		r.AvailableValue.StringFixed(2),
		r.TotalValue.StringFixed(2),
	}
}

var stockReportHeadings = []string{
	"Item", "Category", "Quantity", "Units", "Available", "Borrowed", "Available Value", "Total Value",
}

const stockReportSql = `
SELECT
    i.id AS item_id,
    i.name AS item_name,
    i.category_id,
    c.name AS category_name,
    i.quantity,
    COUNT(su.id) AS unit_count,
    COALESCE(SUM(CASE WHEN su.project_allocation_id IS NULL AND su.is_available = @available THEN 1 ELSE 0 END), 0) AS available_count,
    COALESCE(SUM(CASE WHEN su.project_allocation_id IS NOT NULL THEN 1 ELSE 0 END), 0) AS borrowed_count,
    COALESCE(SUM(CASE WHEN su.project_allocation_id IS NULL AND su.is_available = @available THEN su.price ELSE 0 END), 0) AS available_value,
    COALESCE(SUM(su.price), 0) AS total_value
FROM items i
LEFT JOIN categories c ON c.id = i.category_id
LEFT JOIN serial_units su ON su.item_id = i.id
WHERE (@categoryId = 0 OR i.category_id = @categoryId)
GROUP BY i.id, i.name, i.category_id, c.name, i.quantity
ORDER BY c.name, i.name
`

// GetStockReport lists every item (or only those of categoryId when non-zero).
func GetStockReport(ctx context.Context, categoryId int) ([]*StockReportRow, error) {
	started := time.Now()
	defer logSlowReport(ctx, "StockReport", started, logrus.Fields{"category_id": categoryId})

	if categoryId > 0 {
		if err := utils.ValidateResourceId[models.Category](config.GetDB().WithContext(ctx), categoryId); err != nil {
			return nil, err
		}
	}

	cacheKey := fmt.Sprintf("report:stock:%d", categoryId)
	var rows []*StockReportRow
	if found, err := cacheGet(cacheKey, &rows); err == nil && found {
		return rows, nil
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Raw(stockReportSql, map[string]interface{}{
		"available":  true,
		"categoryId": categoryId,
	}).Scan(&rows).Error
	if err != nil {
		config.LogError(config.GetLogger(), "StockReport", "GetStockReport", "query", categoryId, err)
		return nil, err
	}

	if err := cacheSet(cacheKey, rows); err != nil {
		config.LogError(config.GetLogger(), "StockReport", "GetStockReport", "cache", cacheKey, err)
	}
	return rows, nil
}
