package models_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/models"
	"github.com/stockroom/inventory_backend/utils"
	"gorm.io/gorm"
)

var testDbSeq atomic.Int64

// setupTestDB installs a fresh in-memory database as the process DB and migrates it.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:inventory_test_%d?mode=memory&cache=shared", testDbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), config.InitConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection: every pipeline query runs on the tx connection
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.AutoMigrateAll(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	config.SetDB(db)
	return db
}

func testContext() context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")
	return ctx
}

func mustCreateCategory(t *testing.T, ctx context.Context, name string) *models.Category {
	t.Helper()
	category, err := models.CreateCategory(ctx, &models.NewCategory{Name: name})
	if err != nil {
		t.Fatalf("CreateCategory(%s): %v", name, err)
	}
	return category
}

func mustCreateItem(t *testing.T, ctx context.Context, name string, quantity int, categoryId int) *models.Item {
	t.Helper()
	item, err := models.CreateItem(ctx, &models.NewItem{Name: name, Quantity: quantity, CategoryId: categoryId})
	if err != nil {
		t.Fatalf("CreateItem(%s): %v", name, err)
	}
	return item
}

func mustCreateSupplier(t *testing.T, ctx context.Context, name string) *models.Supplier {
	t.Helper()
	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: name, Address: "Kathmandu"})
	if err != nil {
		t.Fatalf("CreateSupplier(%s): %v", name, err)
	}
	return supplier
}

func mustListItem(t *testing.T, ctx context.Context, supplierId int, itemId int, price string) *models.SupplierItem {
	t.Helper()
	supplierItem, err := models.CreateSupplierItem(ctx, &models.NewSupplierItem{
		SupplierId: supplierId,
		ItemId:     itemId,
		Price:      decimal.RequireFromString(price),
	})
	if err != nil {
		t.Fatalf("CreateSupplierItem: %v", err)
	}
	return supplierItem
}

func mustCreateProject(t *testing.T, ctx context.Context, name string) *models.Project {
	t.Helper()
	project, err := models.CreateProject(ctx, &models.NewProject{
		ProjectHeaderInput: models.ProjectHeaderInput{Name: name, Leader: "Leader"},
	})
	if err != nil {
		t.Fatalf("CreateProject(%s): %v", name, err)
	}
	return project
}

func mustGetItem(t *testing.T, ctx context.Context, id int) *models.Item {
	t.Helper()
	item, err := models.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("GetItem(%d): %v", id, err)
	}
	return item
}

func mustGetCategory(t *testing.T, ctx context.Context, id int) *models.Category {
	t.Helper()
	category, err := models.GetCategory(ctx, id)
	if err != nil {
		t.Fatalf("GetCategory(%d): %v", id, err)
	}
	return category
}

func unitCodes(t *testing.T, ctx context.Context, itemId int, onlyAvailable bool) []string {
	t.Helper()
	units, err := models.ListSerialUnits(ctx, itemId, onlyAvailable)
	if err != nil {
		t.Fatalf("ListSerialUnits(%d): %v", itemId, err)
	}
	codes := make([]string, 0, len(units))
	for _, unit := range units {
		codes = append(codes, unit.Code)
	}
	return codes
}

func boundCodes(t *testing.T, db *gorm.DB, allocationId int) []string {
	t.Helper()
	var codes []string
	if err := db.Model(&models.SerialUnit{}).
		Where("project_allocation_id = ?", allocationId).
		Order("code").
		Pluck("code", &codes).Error; err != nil {
		t.Fatalf("bound codes: %v", err)
	}
	return codes
}

func assertCodes(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("codes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("codes = %v, want %v", got, want)
		}
	}
}

// assertItemConsistent checks nominal quantity == unit count and the category aggregate.
func assertItemConsistent(t *testing.T, ctx context.Context, db *gorm.DB, itemId int) {
	t.Helper()
	item := mustGetItem(t, ctx, itemId)
	units, err := models.CountItemUnits(db, itemId)
	if err != nil {
		t.Fatalf("count units: %v", err)
	}
	if int(units) != item.Quantity {
		t.Fatalf("item %s: quantity=%d, units=%d", item.Name, item.Quantity, units)
	}
	var sum int64
	if err := db.Model(&models.Item{}).Where("category_id = ?", item.CategoryId).Select("COALESCE(SUM(quantity), 0)").Scan(&sum).Error; err != nil {
		t.Fatalf("sum items: %v", err)
	}
	category := mustGetCategory(t, ctx, item.CategoryId)
	if category.Quantity != int(sum) {
		t.Fatalf("category %s: quantity=%d, sum(items)=%d", category.Name, category.Quantity, sum)
	}
}
