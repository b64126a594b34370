package reports

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

type ExcelExporter interface {
	GetCellValues() []interface{}
}

const defaultSheet = "Sheet1"

func newExcelFile(data []ExcelExporter, headings ...string) (*excelize.File, error) {
	f := excelize.NewFile()
	if _, err := f.NewSheet(defaultSheet); err != nil {
		return nil, err
	}

	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(defaultSheet, cell, h); err != nil {
			return nil, err
		}
	}

	rowNo := 2
	for _, d := range data {
		for i, value := range d.GetCellValues() {
			cell, err := excelize.CoordinatesToCellName(i+1, rowNo)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(defaultSheet, cell, value); err != nil {
				return nil, err
			}
		}
		rowNo++
	}
	return f, nil
}

func stockReportWorkbook(rows []*StockReportRow) (*excelize.File, error) {
	data := make([]ExcelExporter, 0, len(rows))
	for _, r := range rows {
		data = append(data, r)
	}
	return newExcelFile(data, stockReportHeadings...)
}

// WriteStockReportXlsx renders rows as a single-sheet workbook into w.
func WriteStockReportXlsx(w io.Writer, rows []*StockReportRow) error {
	f, err := stockReportWorkbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write stock report: %w", err)
	}
	return nil
}

// ExportStockReport runs GetStockReport and saves the workbook to filename.
func ExportStockReport(ctx context.Context, categoryId int, filename string) (int, error) {
	rows, err := GetStockReport(ctx, categoryId)
	if err != nil {
		return 0, err
	}
	f, err := stockReportWorkbook(rows)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if err := f.SaveAs(filename); err != nil {
		return 0, err
	}
	return len(rows), nil
}
