package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/castledepotsmail-cyber/castle-depots/auth"
	"github.com/castledepotsmail-cyber/castle-depots/config"
	"github.com/castledepotsmail-cyber/castle-depots/middleware"
	"github.com/castledepotsmail-cyber/castle-depots/models"
	"github.com/castledepotsmail-cyber/castle-depots/notify"
)

const (
	testUserID    = "6f1c0f7e-0000-4000-8000-000000000001"
	testProductID = "6f1c0f7e-0000-4000-8000-000000000002"
	testOrderID   = "6f1c0f7e-0000-4000-8000-000000000003"
)

var testJWTConfig = &config.JWTConfig{
	Secret:     "test-secret",
	AccessTTL:  time.Hour,
	RefreshTTL: 24 * time.Hour,
}

func orderRows(status models.OrderStatus, paymentMethod models.PaymentMethod, isPaid bool, total float64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "status", "payment_method", "total_amount", "paystack_ref",
		"is_paid", "delivery_address", "delivery_latitude", "delivery_longitude",
		"shipping_cost", "tracking_notes", "created_at", "updated_at",
	}).AddRow(testOrderID, testUserID, status, paymentMethod, total, nil,
		isPaid, "123 Moi Avenue", nil, nil, 0.0, "", time.Now(), time.Now())
}

func setupOrderTest(t *testing.T, isStaff bool) (*OrderHandler, sqlmock.Sqlmock, *gin.Engine, string) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	// Nil mail and a disabled producer: side effects beyond the
	// notification row are skipped in tests.
	notifier := notify.NewNotifier(db, nil, nil, logger)
	handler := NewOrderHandler(db, notifier, logger)

	pair, err := auth.GenerateTokenPair(testJWTConfig, testUserID, "user@example.com", isStaff)
	if err != nil {
		t.Fatalf("Failed to generate test token: %v", err)
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	authRequired := middleware.AuthMiddleware(testJWTConfig)
	router.POST("/orders", authRequired, handler.CreateOrder)
	router.GET("/orders/:id", authRequired, handler.GetOrder)
	router.PATCH("/admin/orders/:id", authRequired, middleware.RequireStaff(), handler.UpdateOrder)

	return handler, mock, router, pair.Access
}

func TestOrderHandler_CreateOrder_Success(t *testing.T) {
	handler, mock, router, token := setupOrderTest(t, false)
	defer handler.db.Close()

	mock.ExpectBegin()

	productRows := sqlmock.NewRows([]string{
		"name", "price", "discount_price", "stock_quantity", "is_active", "allow_pod",
	}).AddRow("Cordless Drill", 100.0, 80.0, 5, true, true)
	mock.ExpectQuery("SELECT name, price, discount_price, stock_quantity, is_active, allow_pod FROM products WHERE id = \\$1 FOR UPDATE").
		WithArgs(testProductID).
		WillReturnRows(productRows)

	mock.ExpectExec("UPDATE products SET stock_quantity = stock_quantity - \\$1").
		WithArgs(2, testProductID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(orderRows(models.OrderStatusPlaced, models.PaymentMethodPayOnDelivery, false, 160.0))

	mock.ExpectQuery("INSERT INTO order_items").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("6f1c0f7e-0000-4000-8000-000000000004"))

	mock.ExpectCommit()

	// Notification row written after commit.
	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{
		"items": [{"product_id": "` + testProductID + `", "quantity": 2}],
		"payment_method": "pod",
		"delivery_address": "123 Moi Avenue"
	}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	var order models.Order
	if err := json.Unmarshal(w.Body.Bytes(), &order); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(order.Items) != 1 {
		t.Errorf("Expected 1 order item, got %d", len(order.Items))
	}
	if order.Items[0].Price != 80.0 {
		t.Errorf("Expected snapshot price 80.0 (discounted), got %f", order.Items[0].Price)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderHandler_CreateOrder_InsufficientStock(t *testing.T) {
	handler, mock, router, token := setupOrderTest(t, false)
	defer handler.db.Close()

	mock.ExpectBegin()

	// 5 in stock, 6 requested: the whole order is rejected and rolled
	// back, no stock is mutated.
	productRows := sqlmock.NewRows([]string{
		"name", "price", "discount_price", "stock_quantity", "is_active", "allow_pod",
	}).AddRow("Cordless Drill", 100.0, nil, 5, true, true)
	mock.ExpectQuery("SELECT name, price, discount_price, stock_quantity, is_active, allow_pod FROM products WHERE id = \\$1 FOR UPDATE").
		WithArgs(testProductID).
		WillReturnRows(productRows)

	mock.ExpectRollback()

	body := `{
		"items": [{"product_id": "` + testProductID + `", "quantity": 6}],
		"payment_method": "pod",
		"delivery_address": "123 Moi Avenue"
	}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Insufficient stock") {
		t.Errorf("Expected insufficient stock error, got %s", w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderHandler_CreateOrder_Unauthenticated(t *testing.T) {
	handler, _, router, _ := setupOrderTest(t, false)
	defer handler.db.Close()

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestOrderHandler_UpdateOrder_StatusChange(t *testing.T) {
	handler, mock, router, token := setupOrderTest(t, true)
	defer handler.db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id = \\$1 FOR UPDATE").
		WithArgs(testOrderID).
		WillReturnRows(orderRows(models.OrderStatusPlaced, models.PaymentMethodPaystack, false, 160.0))
	mock.ExpectQuery("UPDATE orders SET status = \\$1").
		WillReturnRows(orderRows(models.OrderStatusPaymentConfirmed, models.PaymentMethodPaystack, true, 160.0))
	mock.ExpectCommit()

	mock.ExpectQuery("SELECT email FROM users WHERE id = \\$1").
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("user@example.com"))

	// Exactly one notification per persisted status change.
	mock.ExpectExec("INSERT INTO notifications").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"status": "payment_confirmed"}`
	req := httptest.NewRequest(http.MethodPatch, "/admin/orders/"+testOrderID, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderHandler_UpdateOrder_InvalidTransition(t *testing.T) {
	handler, mock, router, token := setupOrderTest(t, true)
	defer handler.db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id = \\$1 FOR UPDATE").
		WithArgs(testOrderID).
		WillReturnRows(orderRows(models.OrderStatusDelivered, models.PaymentMethodPaystack, true, 160.0))
	mock.ExpectRollback()

	body := `{"status": "processing"}`
	req := httptest.NewRequest(http.MethodPatch, "/admin/orders/"+testOrderID, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d: %s", http.StatusBadRequest, w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "invalid status transition") {
		t.Errorf("Expected transition error, got %s", w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestOrderHandler_UpdateOrder_NonStaffForbidden(t *testing.T) {
	handler, _, router, token := setupOrderTest(t, false)
	defer handler.db.Close()

	body := `{"status": "payment_confirmed"}`
	req := httptest.NewRequest(http.MethodPatch, "/admin/orders/"+testOrderID, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status %d, got %d", http.StatusForbidden, w.Code)
	}
}

func TestOrderHandler_GetOrder_NotFound(t *testing.T) {
	handler, mock, router, token := setupOrderTest(t, false)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id = \\$1 AND user_id = \\$2").
		WithArgs(testOrderID, testUserID).
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/orders/"+testOrderID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
