package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/models/reports"
	"github.com/stockroom/inventory_backend/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func main() {
	out := flag.String("out", "stock.xlsx", "Output .xlsx file")
	categoryID := flag.Int("category-id", 0, "Optional: only items of this category")
	gcsObject := flag.String("gcs-object", "", "Optional: also upload the file to GCS_BUCKET under this object name")
	flag.Parse()

	if !strings.HasSuffix(strings.ToLower(*out), ".xlsx") {
		fmt.Fprintln(os.Stderr, "--out must end in .xlsx")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	n, err := reports.ExportStockReport(context.Background(), *categoryID, *out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d items to %s\n", n, *out)

	if *gcsObject == "" {
		return
	}
	f, err := os.Open(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open export: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	if err := utils.UploadFileToGCS(context.Background(), *gcsObject, xlsxContentType, f); err != nil {
		fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("uploaded %s\n", *gcsObject)
}
