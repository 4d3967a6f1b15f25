package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/castledepotsmail-cyber/castle-depots/models"
)

const testCampaignID = "6f1c0f7e-0000-4000-8000-000000000010"

func productListRows(price float64, discountPrice interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "category_id", "name", "slug", "sku", "description",
		"price", "discount_price", "stock_quantity", "image_main", "is_active", "allow_pod",
		"options", "avg", "count", "created_at", "updated_at",
	}).AddRow(testProductID, "6f1c0f7e-0000-4000-8000-000000000020", "Cordless Drill",
		"cordless-drill", "SKU-AABBCCDD", "18V cordless drill", price, discountPrice,
		5, "", true, true, []byte("[]"), 4.5, 2, time.Now(), time.Now())
}

func campaignListRows(mode models.CampaignMode, percentage float64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "title", "slug", "description", "start_time", "end_time", "is_active",
		"discount_percentage", "mode", "target_category_id", "theme_mode",
		"primary_color", "accent_color", "hero_image", "created_at",
	}).AddRow(testCampaignID, "Mega Sale", "mega-sale", "", now.Add(-time.Hour),
		now.Add(time.Hour), true, percentage, mode, nil, "default", nil, nil, nil, now)
}

// Tests run with a nil Redis client, so slug lookups always hit the
// database.
func setupProductTest(t *testing.T) (*ProductHandler, sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	handler := NewProductHandler(db, nil, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/products", handler.ListProducts)
	router.GET("/products/:slug", handler.GetProduct)

	return handler, mock, router
}

func TestProductHandler_ListProducts_AppliesCampaignDiscount(t *testing.T) {
	handler, mock, router := setupProductTest(t)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT (.+) FROM products p WHERE p.is_active = TRUE").
		WillReturnRows(productListRows(100.0, nil))

	// One active store-wide 20% campaign.
	mock.ExpectQuery("SELECT (.+) FROM campaigns WHERE is_active = TRUE").
		WillReturnRows(campaignListRows(models.CampaignModeAll, 20))
	mock.ExpectQuery("SELECT campaign_id, product_id FROM campaign_products").
		WillReturnRows(sqlmock.NewRows([]string{"campaign_id", "product_id"}))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var products []models.Product
	if err := json.Unmarshal(w.Body.Bytes(), &products); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("Expected 1 product, got %d", len(products))
	}
	if products[0].DiscountPrice == nil {
		t.Fatal("Expected campaign discount to be applied")
	}
	if *products[0].DiscountPrice != 80.0 {
		t.Errorf("Expected discount price 80.00 for 20%% off 100.00, got %f", *products[0].DiscountPrice)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestProductHandler_ListProducts_KeepsLowerManualDiscount(t *testing.T) {
	handler, mock, router := setupProductTest(t)
	defer handler.db.Close()

	// Manual discount 50.00 is better than the 20% campaign; it must not
	// be raised.
	mock.ExpectQuery("SELECT (.+) FROM products p WHERE p.is_active = TRUE").
		WillReturnRows(productListRows(100.0, 50.0))
	mock.ExpectQuery("SELECT (.+) FROM campaigns WHERE is_active = TRUE").
		WillReturnRows(campaignListRows(models.CampaignModeAll, 20))
	mock.ExpectQuery("SELECT campaign_id, product_id FROM campaign_products").
		WillReturnRows(sqlmock.NewRows([]string{"campaign_id", "product_id"}))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var products []models.Product
	if err := json.Unmarshal(w.Body.Bytes(), &products); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if products[0].DiscountPrice == nil || *products[0].DiscountPrice != 50.0 {
		t.Errorf("Expected manual discount 50.00 to be kept, got %v", products[0].DiscountPrice)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestProductHandler_GetProduct_NotFound(t *testing.T) {
	handler, mock, router := setupProductTest(t)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT (.+) FROM products p WHERE p.slug = \\$1").
		WithArgs("no-such-product").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/products/no-such-product", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
