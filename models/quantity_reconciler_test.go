package models_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stockroom/inventory_backend/models"
	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

type purchaseFixture struct {
	category *models.Category
	pi       *models.Item
	arduino  *models.Item
	supplier *models.Supplier
}

func newPurchaseFixture(t *testing.T, ctx context.Context) purchaseFixture {
	t.Helper()
	f := purchaseFixture{}
	f.category = mustCreateCategory(t, ctx, "Boards")
	f.pi = mustCreateItem(t, ctx, "Raspberry Pi", 0, f.category.ID)
	f.arduino = mustCreateItem(t, ctx, "Arduino", 0, f.category.ID)
	f.supplier = mustCreateSupplier(t, ctx, "Himalayan Parts")
	mustListItem(t, ctx, f.supplier.ID, f.pi.ID, "100")
	mustListItem(t, ctx, f.supplier.ID, f.arduino.ID, "50")
	return f
}

func (f purchaseFixture) line(item *models.Item, quantity int, price string) models.NewPurchaseLine {
	return models.NewPurchaseLine{
		ItemId:     item.ID,
		CategoryId: item.CategoryId,
		Quantity:   quantity,
		Price:      decimal.RequireFromString(price),
	}
}

func mustCreatePurchase(t *testing.T, ctx context.Context, billNumber string, supplierId int, lines ...models.NewPurchaseLine) *models.Purchase {
	t.Helper()
	purchase, err := models.CreatePurchase(ctx, &models.NewPurchase{
		PurchaseHeaderInput: models.PurchaseHeaderInput{BillNumber: billNumber, SupplierId: supplierId},
		Lines:               lines,
	})
	if err != nil {
		t.Fatalf("CreatePurchase(%s): %v", billNumber, err)
	}
	return purchase
}

func assertPurchaseTotals(t *testing.T, ctx context.Context, purchaseId int, total string, final string) {
	t.Helper()
	purchase, err := models.GetPurchase(ctx, purchaseId)
	if err != nil {
		t.Fatalf("GetPurchase: %v", err)
	}
	if !purchase.TotalPrice.Equal(decimal.RequireFromString(total)) {
		t.Fatalf("total_price = %s, want %s", purchase.TotalPrice, total)
	}
	if !purchase.FinalPriceWithVat.Equal(decimal.RequireFromString(final)) {
		t.Fatalf("final_price_with_vat = %s, want %s", purchase.FinalPriceWithVat, final)
	}
}

func unitPrices(t *testing.T, db *gorm.DB, itemId int) map[string]string {
	t.Helper()
	var units []models.SerialUnit
	if err := db.Where("item_id = ?", itemId).Order("code").Find(&units).Error; err != nil {
		t.Fatalf("units: %v", err)
	}
	prices := make(map[string]string, len(units))
	for _, unit := range units {
		prices[unit.Code] = unit.Price.String()
	}
	return prices
}

func TestPurchaseTotalsFollowLines(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext()
	f := newPurchaseFixture(t, ctx)

	purchase := mustCreatePurchase(t, ctx, "BILL-001", f.supplier.ID,
		f.line(f.pi, 3, "100"),
		f.line(f.arduino, 2, "50"),
	)
	if !purchase.TotalPrice.Equal(decimal.NewFromInt(400)) || !purchase.FinalPriceWithVat.Equal(decimal.NewFromInt(452)) {
		t.Fatalf("totals = %s / %s, want 400 / 452", purchase.TotalPrice, purchase.FinalPriceWithVat)
	}
	if purchase.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("payment status = %s, want Pending", purchase.PaymentStatus)
	}
	if len(purchase.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(purchase.Lines))
	}

	pi := mustGetItem(t, ctx, f.pi.ID)
	if pi.Quantity != 3 {
		t.Fatalf("pi quantity = %d, want 3", pi.Quantity)
	}
	for code, price := range unitPrices(t, db, f.pi.ID) {
		if price != "100" {
			t.Fatalf("unit %s price = %s, want 100", code, price)
		}
	}
	if got := mustGetCategory(t, ctx, f.category.ID).Quantity; got != 5 {
		t.Fatalf("category quantity = %d, want 5", got)
	}

	// quantity 3 -> 5 on the first line
	if _, err := models.UpdatePurchaseLine(ctx, purchase.Lines[0].ID, &models.NewPurchaseLine{
		ItemId: f.pi.ID, CategoryId: f.category.ID, Quantity: 5, Price: decimal.NewFromInt(100),
	}); err != nil {
		t.Fatalf("UpdatePurchaseLine: %v", err)
	}
	assertPurchaseTotals(t, ctx, purchase.ID, "600", "678")
	assertCodes(t, unitCodes(t, ctx, f.pi.ID, false), "RA0001", "RA0002", "RA0003", "RA0004", "RA0005")

	if _, err := models.DeletePurchaseLine(ctx, purchase.Lines[1].ID); err != nil {
		t.Fatalf("DeletePurchaseLine: %v", err)
	}
	assertPurchaseTotals(t, ctx, purchase.ID, "500", "565")
	if got := mustGetItem(t, ctx, f.arduino.ID).Quantity; got != 0 {
		t.Fatalf("arduino quantity = %d, want 0", got)
	}
	assertItemConsistent(t, ctx, db, f.pi.ID)
	assertItemConsistent(t, ctx, db, f.arduino.ID)
}

func TestFinalPriceWithVatRoundsUp(t *testing.T) {
	cases := map[string]string{
		"0":     "0",
		"400":   "452",
		"99.99": "113",
		"1":     "2",
		"100":   "113",
	}
	for total, want := range cases {
		got := models.FinalPriceWithVat(decimal.RequireFromString(total))
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("FinalPriceWithVat(%s) = %s, want %s", total, got, want)
		}
	}
}

func TestPurchaseLineRepricesLowestAvailableCodes(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext()
	f := newPurchaseFixture(t, ctx)

	if _, err := models.UpdateItem(ctx, f.pi.ID, &models.NewItem{Name: "Raspberry Pi", Quantity: 2, CategoryId: f.category.ID}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	mustCreatePurchase(t, ctx, "BILL-002", f.supplier.ID, f.line(f.pi, 1, "100"))

	prices := unitPrices(t, db, f.pi.ID)
	want := map[string]string{"RA0001": "100", "RA0002": "0", "RA0003": "0"}
	if len(prices) != len(want) {
		t.Fatalf("prices = %v, want %v", prices, want)
	}
	for code, price := range want {
		if prices[code] != price {
			t.Fatalf("prices = %v, want %v", prices, want)
		}
	}
}

func TestPurchaseLineItemChangeMovesQuantity(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext()
	f := newPurchaseFixture(t, ctx)

	purchase := mustCreatePurchase(t, ctx, "BILL-003", f.supplier.ID, f.line(f.pi, 3, "100"))
	line, err := models.UpdatePurchaseLine(ctx, purchase.Lines[0].ID, &models.NewPurchaseLine{
		ItemId: f.arduino.ID, CategoryId: f.category.ID, Quantity: 2, Price: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("UpdatePurchaseLine: %v", err)
	}
	if line.ItemId != f.arduino.ID {
		t.Fatalf("line item = %d, want %d", line.ItemId, f.arduino.ID)
	}
	if got := mustGetItem(t, ctx, f.pi.ID).Quantity; got != 0 {
		t.Fatalf("pi quantity = %d, want 0", got)
	}
	if got := mustGetItem(t, ctx, f.arduino.ID).Quantity; got != 2 {
		t.Fatalf("arduino quantity = %d, want 2", got)
	}
	assertPurchaseTotals(t, ctx, purchase.ID, "100", "113")
	assertItemConsistent(t, ctx, db, f.pi.ID)
	assertItemConsistent(t, ctx, db, f.arduino.ID)
}

func TestPurchaseLineDeleteFailsWhenUnitsAreBorrowed(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext()
	f := newPurchaseFixture(t, ctx)

	purchase := mustCreatePurchase(t, ctx, "BILL-004", f.supplier.ID, f.line(f.pi, 3, "100"))
	project := mustCreateProject(t, ctx, "Weather station")
	if _, err := models.CreateProjectAllocation(ctx, project.ID, &models.NewProjectAllocation{ItemId: f.pi.ID, Quantity: 2}); err != nil {
		t.Fatalf("CreateProjectAllocation: %v", err)
	}

	_, err := models.DeletePurchaseLine(ctx, purchase.Lines[0].ID)
	if !errors.Is(err, utils.ErrInsufficientAvailable) {
		t.Fatalf("DeletePurchaseLine err = %v, want insufficient available", err)
	}
	assertPurchaseTotals(t, ctx, purchase.ID, "300", "339")
	if got := mustGetItem(t, ctx, f.pi.ID).Quantity; got != 3 {
		t.Fatalf("pi quantity = %d, want 3", got)
	}
	var lines int64
	db.Model(&models.PurchaseLine{}).Where("purchase_id = ?", purchase.ID).Count(&lines)
	if lines != 1 {
		t.Fatalf("lines = %d, want 1", lines)
	}
}

func TestCategoryAggregateRecompute(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext()

	boards := mustCreateCategory(t, ctx, "Boards")
	sensors := mustCreateCategory(t, ctx, "Sensors")
	pi := mustCreateItem(t, ctx, "Raspberry Pi", 3, boards.ID)
	mustCreateItem(t, ctx, "Arduino", 2, boards.ID)

	if got := mustGetCategory(t, ctx, boards.ID).Quantity; got != 5 {
		t.Fatalf("boards quantity = %d, want 5", got)
	}

	if _, err := models.UpdateItem(ctx, pi.ID, &models.NewItem{Name: "Raspberry Pi", Quantity: 3, CategoryId: sensors.ID}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if got := mustGetCategory(t, ctx, boards.ID).Quantity; got != 2 {
		t.Fatalf("boards quantity = %d, want 2", got)
	}
	if got := mustGetCategory(t, ctx, sensors.ID).Quantity; got != 3 {
		t.Fatalf("sensors quantity = %d, want 3", got)
	}

	// drift the stored aggregate, then recompute twice
	if err := db.Model(&models.Category{}).Where("id = ?", boards.ID).Update("quantity", 42).Error; err != nil {
		t.Fatalf("drift: %v", err)
	}
	first, err := models.RecomputeCategory(ctx, boards.ID)
	if err != nil {
		t.Fatalf("RecomputeCategory: %v", err)
	}
	second, err := models.RecomputeCategory(ctx, boards.ID)
	if err != nil {
		t.Fatalf("RecomputeCategory: %v", err)
	}
	if first.Quantity != 2 || second.Quantity != 2 {
		t.Fatalf("recompute = %d then %d, want 2 twice", first.Quantity, second.Quantity)
	}

	empty := mustCreateCategory(t, ctx, "Empty")
	got, err := models.RecomputeCategory(ctx, empty.ID)
	if err != nil {
		t.Fatalf("RecomputeCategory(empty): %v", err)
	}
	if got.Quantity != 0 {
		t.Fatalf("empty category quantity = %d, want 0", got.Quantity)
	}
}

func TestPurchaseHeaderValidation(t *testing.T) {
	setupTestDB(t)
	ctx := testContext()
	f := newPurchaseFixture(t, ctx)

	mustCreatePurchase(t, ctx, "BILL-005", f.supplier.ID)
	_, err := models.CreatePurchase(ctx, &models.NewPurchase{
		PurchaseHeaderInput: models.PurchaseHeaderInput{BillNumber: "BILL-005", SupplierId: f.supplier.ID},
	})
	if !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("duplicate bill number err = %v, want validation error", err)
	}
	_, err = models.CreatePurchase(ctx, &models.NewPurchase{
		PurchaseHeaderInput: models.PurchaseHeaderInput{BillNumber: "BILL-006", SupplierId: f.supplier.ID, PaymentStatus: "Overdue"},
	})
	if !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("bad payment status err = %v, want validation error", err)
	}

	paid, err := models.CreatePurchase(ctx, &models.NewPurchase{
		PurchaseHeaderInput: models.PurchaseHeaderInput{BillNumber: "BILL-007", SupplierId: f.supplier.ID, PaymentStatus: models.PaymentStatusPaid},
	})
	if err != nil {
		t.Fatalf("CreatePurchase: %v", err)
	}
	if paid.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("payment status = %s, want Paid", paid.PaymentStatus)
	}
}
