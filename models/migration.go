package models

import (
	"log"

	"github.com/stockroom/inventory_backend/config"
	"gorm.io/gorm"
)

func MigrateTable() {
	db := config.GetDB()
	if err := AutoMigrateAll(db); err != nil {
		log.Fatal(err)
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&Category{}, &Item{}, &SerialUnit{},
		&Supplier{}, &SupplierItem{},
		&Purchase{}, &PurchaseLine{},
		&Project{}, &ProjectAllocation{},
		&History{}, &InventoryEventRecord{}, &ReconciliationReport{},
	)
}
