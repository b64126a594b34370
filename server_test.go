package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stockroom/inventory_backend/config"
	"github.com/stockroom/inventory_backend/models"
	"github.com/stockroom/inventory_backend/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type testResponse struct {
	IsSuccess    bool            `json:"is_success"`
	ErrorMessage *string         `json:"error_message"`
	StatusCode   int             `json:"status_code"`
	Result       json.RawMessage `json:"result"`
}

func setupServer(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), config.InitConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.AutoMigrateAll(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	config.SetDB(db)

	token, err := utils.JwtGenerate(utils.JwtCustomClaim{ID: 1, Name: "Admin", Username: "admin", Role: utils.RoleAdmin})
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return newRouter(logger), token
}

func serve(r *gin.Engine, method string, path string, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) testResponse {
	t.Helper()
	var resp testResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHealthzAndNotFound(t *testing.T) {
	r, _ := setupServer(t)
	if w := serve(r, http.MethodGet, "/healthz", ""); w.Code != http.StatusNoContent {
		t.Fatalf("healthz = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/metrics", ""); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Fatalf("metrics = %d", w.Code)
	}
	w := serve(r, http.MethodGet, "/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown route = %d", w.Code)
	}
	if w.Header().Get("x-correlation-id") == "" {
		t.Fatalf("missing correlation id header")
	}
}

func TestOpsRoutesRequireAdmin(t *testing.T) {
	r, _ := setupServer(t)
	if w := serve(r, http.MethodGet, "/internal/ops/outbox/CAT/1", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous = %d", w.Code)
	}
	staff, err := utils.JwtGenerate(utils.JwtCustomClaim{ID: 2, Role: "Staff"})
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	if w := serve(r, http.MethodGet, "/internal/ops/outbox/CAT/1", staff); w.Code != http.StatusUnauthorized {
		t.Fatalf("staff = %d", w.Code)
	}
}

func TestOutboxRoutes(t *testing.T) {
	r, token := setupServer(t)
	category, err := models.CreateCategory(context.Background(), &models.NewCategory{Name: "Boards"})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	w := serve(r, http.MethodGet, "/internal/ops/outbox/cat/"+strconv.Itoa(category.ID), token)
	resp := decode(t, w)
	if w.Code != http.StatusOK || !resp.IsSuccess {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}
	var status models.OutboxStatus
	if err := json.Unmarshal(resp.Result, &status); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if status.ReferenceId != category.ID || status.PublishStatus != models.OutboxPublishStatusPending {
		t.Fatalf("outbox status = %+v", status)
	}

	// pending rows are not reprocessable
	w = serve(r, http.MethodPost, "/internal/ops/outbox/CAT/"+strconv.Itoa(category.ID)+"/reprocess", token)
	if w.Code != http.StatusNotFound || decode(t, w).IsSuccess {
		t.Fatalf("reprocess pending = %d %s", w.Code, w.Body.String())
	}

	if w := serve(r, http.MethodGet, "/internal/ops/outbox/XYZ/1", token); w.Code != http.StatusBadRequest {
		t.Fatalf("bad type = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/internal/ops/outbox/CAT/abc", token); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d", w.Code)
	}
}

func TestReconciliationRoute(t *testing.T) {
	r, token := setupServer(t)
	w := serve(r, http.MethodPost, "/internal/ops/reconciliation?repair=true", token)
	resp := decode(t, w)
	if w.Code != http.StatusOK || !resp.IsSuccess {
		t.Fatalf("reconciliation = %d %s", w.Code, w.Body.String())
	}
	var summary models.ReconciliationSummary
	if err := json.Unmarshal(resp.Result, &summary); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(summary.Findings) != 0 || summary.CorrelationId == "" {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestStockReportRoute(t *testing.T) {
	r, token := setupServer(t)
	ctx := context.Background()
	category, err := models.CreateCategory(ctx, &models.NewCategory{Name: "Boards"})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if _, err := models.CreateItem(ctx, &models.NewItem{Name: "Arduino", Quantity: 2, CategoryId: category.ID}); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	w := serve(r, http.MethodGet, "/internal/reports/stock?category_id="+strconv.Itoa(category.ID), token)
	if w.Code != http.StatusOK {
		t.Fatalf("stock json = %d %s", w.Code, w.Body.String())
	}
	var rows []map[string]any
	if err := json.Unmarshal(decode(t, w).Result, &rows); err != nil || len(rows) != 1 {
		t.Fatalf("rows = %v, err = %v", rows, err)
	}

	w = serve(r, http.MethodGet, "/internal/reports/stock?format=xlsx", token)
	if w.Code != http.StatusOK {
		t.Fatalf("stock xlsx = %d", w.Code)
	}
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	if v, _ := f.GetCellValue("Sheet1", "A2"); v != "Arduino" {
		t.Fatalf("A2 = %q", v)
	}

	if w := serve(r, http.MethodGet, "/internal/reports/stock?category_id=x", token); w.Code != http.StatusBadRequest {
		t.Fatalf("bad category = %d", w.Code)
	}
}
