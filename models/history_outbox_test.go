package models_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stockroom/inventory_backend/models"
	"github.com/stockroom/inventory_backend/utils"
)

func TestMutationsWriteHistoryAndOutboxInSameTransaction(t *testing.T) {
	db := setupTestDB(t)
	ctx := utils.SetCorrelationIdInContext(testContext(), "corr-123")

	category := mustCreateCategory(t, ctx, "Boards")
	item := mustCreateItem(t, ctx, "Raspberry Pi", 2, category.ID)
	if _, err := models.UpdateItem(ctx, item.ID, &models.NewItem{Name: "Raspberry Pi 5", Quantity: 2, CategoryId: category.ID}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}

	histories, err := models.ListHistories(ctx, models.InventoryReferenceTypeItem, item.ID)
	if err != nil {
		t.Fatalf("ListHistories: %v", err)
	}
	if len(histories) != 2 {
		t.Fatalf("histories = %d, want 2", len(histories))
	}
	if histories[0].ActionType != "UPDATE" || histories[1].ActionType != "CREATE" {
		t.Fatalf("history actions = %s, %s", histories[0].ActionType, histories[1].ActionType)
	}
	if histories[0].UserId != 1 || histories[0].UserName != "Test" || histories[0].Username != "test@local" {
		t.Fatalf("history actor = %d/%s/%s", histories[0].UserId, histories[0].UserName, histories[0].Username)
	}
	var before models.Item
	if err := json.Unmarshal([]byte(histories[0].Before), &before); err != nil {
		t.Fatalf("unmarshal before: %v", err)
	}
	if before.Name != "Raspberry Pi" {
		t.Fatalf("before name = %s", before.Name)
	}

	var events []models.InventoryEventRecord
	if err := db.Where("reference_type = ? AND reference_id = ?", models.InventoryReferenceTypeItem, item.ID).Order("id").Find(&events).Error; err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Action != models.InventoryEventActionCreate || events[1].Action != models.InventoryEventActionUpdate {
		t.Fatalf("event actions = %s, %s", events[0].Action, events[1].Action)
	}
	if events[1].PublishStatus != models.OutboxPublishStatusPending || events[1].CorrelationId != "corr-123" {
		t.Fatalf("event = %+v", events[1])
	}
	if len(events[0].OldObj) != 0 || len(events[1].OldObj) == 0 {
		t.Fatalf("old obj lengths = %d, %d", len(events[0].OldObj), len(events[1].OldObj))
	}
}

func TestRolledBackMutationLeavesNoTrail(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext()
	f := newPurchaseFixture(t, ctx)
	purchase := mustCreatePurchase(t, ctx, "BILL-300", f.supplier.ID)

	var beforeEvents, beforeHistories int64
	db.Model(&models.InventoryEventRecord{}).Count(&beforeEvents)
	db.Model(&models.History{}).Count(&beforeHistories)

	_, err := models.CreatePurchaseLine(ctx, purchase.ID, &models.NewPurchaseLine{
		ItemId: f.pi.ID, CategoryId: f.category.ID, Quantity: 2, Price: decimal.NewFromInt(1),
	})
	if !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("CreatePurchaseLine err = %v, want validation error", err)
	}

	var afterEvents, afterHistories int64
	db.Model(&models.InventoryEventRecord{}).Count(&afterEvents)
	db.Model(&models.History{}).Count(&afterHistories)
	if afterEvents != beforeEvents || afterHistories != beforeHistories {
		t.Fatalf("events %d -> %d, histories %d -> %d", beforeEvents, afterEvents, beforeHistories, afterHistories)
	}
}

func TestOutboxStatusAndReprocess(t *testing.T) {
	db := setupTestDB(t)
	ctx := testContext()

	category := mustCreateCategory(t, ctx, "Boards")
	status, err := models.GetOutboxStatus(ctx, models.InventoryReferenceTypeCategory, category.ID)
	if err != nil {
		t.Fatalf("GetOutboxStatus: %v", err)
	}
	if status.PublishStatus != models.OutboxPublishStatusPending || status.Action != models.InventoryEventActionCreate {
		t.Fatalf("status = %+v", status)
	}

	if _, err := models.ReprocessOutbox(ctx, models.InventoryReferenceTypeCategory, category.ID); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("ReprocessOutbox on pending err = %v, want record not found", err)
	}

	if err := db.Model(&models.InventoryEventRecord{}).
		Where("id = ?", status.RecordId).
		Updates(map[string]interface{}{"publish_status": models.OutboxPublishStatusDead, "publish_attempts": 10}).Error; err != nil {
		t.Fatalf("mark dead: %v", err)
	}
	status, err = models.ReprocessOutbox(ctx, models.InventoryReferenceTypeCategory, category.ID)
	if err != nil {
		t.Fatalf("ReprocessOutbox: %v", err)
	}
	if status.PublishStatus != models.OutboxPublishStatusPending || status.PublishAttempts != 0 {
		t.Fatalf("status after reprocess = %+v", status)
	}

	if _, err := models.GetOutboxStatus(ctx, models.InventoryReferenceTypeCategory, 999); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("GetOutboxStatus(999) err = %v, want record not found", err)
	}
}
