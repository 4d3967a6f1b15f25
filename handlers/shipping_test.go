package handlers

import (
	"database/sql"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func settingsRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "store_name", "store_address", "latitude", "longitude",
		"cost_per_km", "base_shipping_cost", "max_delivery_distance", "updated_at",
	}).AddRow("6f1c0f7e-0000-4000-8000-000000000030", "Castle Depots", "Nairobi, Kenya",
		-1.2921, 36.8219, 50.0, 200.0, 50.0, time.Now())
}

func setupShippingTest(t *testing.T) (*ShippingHandler, sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	handler := NewShippingHandler(db, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/calculate_shipping", handler.CalculateShipping)

	return handler, mock, router
}

func TestShippingHandler_CalculateShipping_Success(t *testing.T) {
	handler, mock, router := setupShippingTest(t)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT (.+) FROM store_settings LIMIT 1").
		WillReturnRows(settingsRows())

	// ~10km north of the store: 200 base + 50/km.
	req := httptest.NewRequest(http.MethodGet, "/calculate_shipping?lat=-1.2022&lng=36.8219", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp struct {
		Cost     float64 `json:"cost"`
		Distance float64 `json:"distance"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if math.Abs(resp.Distance-10.0) > 0.1 {
		t.Errorf("Expected distance of roughly 10km, got %f", resp.Distance)
	}
	if math.Abs(resp.Cost-700.0) > 5.0 {
		t.Errorf("Expected cost of roughly 700 (200 + 10km x 50), got %f", resp.Cost)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestShippingHandler_CalculateShipping_OutOfRange(t *testing.T) {
	handler, mock, router := setupShippingTest(t)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT (.+) FROM store_settings LIMIT 1").
		WillReturnRows(settingsRows())

	// Mombasa is ~440km from Nairobi, far beyond the 50km limit.
	req := httptest.NewRequest(http.MethodGet, "/calculate_shipping?lat=-4.0435&lng=39.6682", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body.String())
	}

	var resp struct {
		Distance float64 `json:"distance"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Distance <= 50.0 {
		t.Errorf("Expected reported distance beyond the 50km limit, got %f", resp.Distance)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestShippingHandler_CalculateShipping_NotConfigured(t *testing.T) {
	handler, mock, router := setupShippingTest(t)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT (.+) FROM store_settings LIMIT 1").
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/calculate_shipping?lat=-1.2921&lng=36.8219", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var resp struct {
		Cost    float64 `json:"cost"`
		Message string  `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Cost != 0 {
		t.Errorf("Expected zero cost when store location is not set, got %f", resp.Cost)
	}
	if resp.Message == "" {
		t.Error("Expected an explanatory message when store location is not set")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestShippingHandler_CalculateShipping_InvalidCoordinates(t *testing.T) {
	handler, _, router := setupShippingTest(t)
	defer handler.db.Close()

	req := httptest.NewRequest(http.MethodGet, "/calculate_shipping?lat=abc&lng=36.8219", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}
