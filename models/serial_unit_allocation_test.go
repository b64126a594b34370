package models_test

import (
	"errors"
	"testing"

	"github.com/stockroom/inventory_backend/models"
	"github.com/stockroom/inventory_backend/utils"
)

func TestItemQuantityChangesAllocateAndReclaimSerialUnits(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext()

	category := mustCreateCategory(t, ctx, "Boards")
	item := mustCreateItem(t, ctx, "Raspberry Pi", 3, category.ID)
	assertCodes(t, unitCodes(t, ctx, item.ID, false), "RA0001", "RA0002", "RA0003")

	if _, err := models.UpdateItem(ctx, item.ID, &models.NewItem{Name: "Raspberry Pi", Quantity: 5, CategoryId: category.ID}); err != nil {
		t.Fatalf("UpdateItem to 5: %v", err)
	}
	assertCodes(t, unitCodes(t, ctx, item.ID, false), "RA0001", "RA0002", "RA0003", "RA0004", "RA0005")

	updated, err := models.UpdateItem(ctx, item.ID, &models.NewItem{Name: "Raspberry Pi", Quantity: 4, CategoryId: category.ID})
	if err != nil {
		t.Fatalf("UpdateItem to 4: %v", err)
	}
	assertCodes(t, unitCodes(t, ctx, item.ID, false), "RA0001", "RA0002", "RA0003", "RA0004")
	if updated.Quantity != 4 || updated.AvailableQuantity != 4 {
		t.Fatalf("updated item quantity=%d available=%d, want 4/4", updated.Quantity, updated.AvailableQuantity)
	}
	if got := mustGetCategory(t, ctx, category.ID).Quantity; got != 4 {
		t.Fatalf("category quantity = %d, want 4", got)
	}
	assertItemConsistent(t, ctx, db, item.ID)
}

func TestSerialSequenceIsSharedByPrefix(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext()

	category := mustCreateCategory(t, ctx, "Boards")
	pi := mustCreateItem(t, ctx, "Raspberry Pi", 2, category.ID)
	radio := mustCreateItem(t, ctx, "radio module", 2, category.ID)
	assertCodes(t, unitCodes(t, ctx, radio.ID, false), "RA0003", "RA0004")

	// the next code continues from the highest code left for the prefix, whichever item owns it
	if _, err := models.UpdateItem(ctx, radio.ID, &models.NewItem{Name: "radio module", Quantity: 1, CategoryId: category.ID}); err != nil {
		t.Fatalf("UpdateItem radio: %v", err)
	}
	if _, err := models.UpdateItem(ctx, pi.ID, &models.NewItem{Name: "Raspberry Pi", Quantity: 3, CategoryId: category.ID}); err != nil {
		t.Fatalf("UpdateItem pi: %v", err)
	}
	assertCodes(t, unitCodes(t, ctx, pi.ID, false), "RA0001", "RA0002", "RA0004")

	if got := mustGetCategory(t, ctx, category.ID).Quantity; got != 4 {
		t.Fatalf("category quantity = %d, want 4", got)
	}
	assertItemConsistent(t, ctx, db, pi.ID)
	assertItemConsistent(t, ctx, db, radio.ID)
}

func TestRenamedItemAllocatesWithNewPrefix(t *testing.T) {
	setupTestDB(t)
	ctx := testContext()

	category := mustCreateCategory(t, ctx, "Sensors")
	item := mustCreateItem(t, ctx, "lidar", 1, category.ID)

	if _, err := models.UpdateItem(ctx, item.ID, &models.NewItem{Name: "Sonar", Quantity: 2, CategoryId: category.ID}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	assertCodes(t, unitCodes(t, ctx, item.ID, false), "LI0001", "SO0001")
}

func TestReclaimAfterRenameFollowsCodeOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext()

	category := mustCreateCategory(t, ctx, "Sensors")
	item := mustCreateItem(t, ctx, "Radar", 3, category.ID)
	if _, err := models.UpdateItem(ctx, item.ID, &models.NewItem{Name: "Altimeter", Quantity: 4, CategoryId: category.ID}); err != nil {
		t.Fatalf("UpdateItem rename: %v", err)
	}
	assertCodes(t, unitCodes(t, ctx, item.ID, false), "AL0001", "RA0001", "RA0002", "RA0003")

	if _, err := models.UpdateItem(ctx, item.ID, &models.NewItem{Name: "Altimeter", Quantity: 2, CategoryId: category.ID}); err != nil {
		t.Fatalf("UpdateItem shrink: %v", err)
	}
	assertCodes(t, unitCodes(t, ctx, item.ID, false), "AL0001", "RA0001")
	assertItemConsistent(t, ctx, db, item.ID)
}

func TestReclaimWithTooFewAvailableUnitsRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext()

	category := mustCreateCategory(t, ctx, "Boards")
	item := mustCreateItem(t, ctx, "Arduino", 5, category.ID)
	project := mustCreateProject(t, ctx, "Rover")
	if _, err := models.CreateProjectAllocation(ctx, project.ID, &models.NewProjectAllocation{ItemId: item.ID, Quantity: 3}); err != nil {
		t.Fatalf("CreateProjectAllocation: %v", err)
	}

	_, err := models.UpdateItem(ctx, item.ID, &models.NewItem{Name: "Arduino", Quantity: 1, CategoryId: category.ID})
	if !errors.Is(err, utils.ErrInsufficientAvailable) {
		t.Fatalf("UpdateItem err = %v, want insufficient available", err)
	}
	var insufficient *utils.InsufficientAvailableError
	if !errors.As(err, &insufficient) || insufficient.Requested != 4 || insufficient.TotalAvailable != 2 {
		t.Fatalf("insufficient error = %+v, want requested 4 available 2", insufficient)
	}

	got := mustGetItem(t, ctx, item.ID)
	if got.Quantity != 5 || got.AvailableQuantity != 2 {
		t.Fatalf("item quantity=%d available=%d, want 5/2", got.Quantity, got.AvailableQuantity)
	}
	assertCodes(t, unitCodes(t, ctx, item.ID, false), "AR0001", "AR0002", "AR0003", "AR0004", "AR0005")
	if available, err := models.GetItemAvailableQuantity(ctx, item.ID); err != nil || available != 2 {
		t.Fatalf("GetItemAvailableQuantity = %d, %v; want 2", available, err)
	}
	if _, err := models.GetItemAvailableQuantity(ctx, 9999); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("GetItemAvailableQuantity(missing) err = %v, want not found", err)
	}
	if got := mustGetCategory(t, ctx, category.ID).Quantity; got != 5 {
		t.Fatalf("category quantity = %d, want 5", got)
	}
	assertItemConsistent(t, ctx, db, item.ID)
}

func TestSerialCodeHelpers(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Raspberry Pi", "RA"},
		{"ab", "AB"},
		{"éclair", "ÉC"},
	}
	for _, tc := range cases {
		if got := models.SerialPrefix(tc.name); got != tc.want {
			t.Fatalf("SerialPrefix(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
	if got := models.FormatSerialCode("RA", 12); got != "RA0012" {
		t.Fatalf("FormatSerialCode = %q", got)
	}
}

func TestSerialSequenceExhaustionIsRejected(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext()

	category := mustCreateCategory(t, ctx, "Cables")
	item := mustCreateItem(t, ctx, "USB cable", 1, category.ID)
	if err := db.Model(&models.SerialUnit{}).Where("item_id = ?", item.ID).Update("code", "US9999").Error; err != nil {
		t.Fatalf("set code: %v", err)
	}

	_, err := models.UpdateItem(ctx, item.ID, &models.NewItem{Name: "USB cable", Quantity: 2, CategoryId: category.ID})
	if !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("UpdateItem err = %v, want validation error", err)
	}
	if got := mustGetItem(t, ctx, item.ID).Quantity; got != 1 {
		t.Fatalf("quantity = %d, want 1", got)
	}
}

func TestCreateItemValidatesInput(t *testing.T) {
	setupTestDB(t)
	ctx := testContext()
	category := mustCreateCategory(t, ctx, "Misc")

	cases := []models.NewItem{
		{Name: "X", Quantity: 1, CategoryId: category.ID},
		{Name: "Valid", Quantity: -1, CategoryId: category.ID},
		{Name: "Valid", Quantity: 1, CategoryId: category.ID + 100},
		{Name: "Valid", Quantity: 1},
	}
	for i := range cases {
		if _, err := models.CreateItem(ctx, &cases[i]); !errors.Is(err, utils.ErrValidation) {
			t.Fatalf("case %d: err = %v, want validation error", i, err)
		}
	}
	items, err := models.ListItems(ctx, 0)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("items = %d, want 0", len(items))
	}
}
