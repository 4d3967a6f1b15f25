package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/castledepotsmail-cyber/castle-depots/database"
	"github.com/castledepotsmail-cyber/castle-depots/middleware"
	"github.com/castledepotsmail-cyber/castle-depots/models"
	"github.com/castledepotsmail-cyber/castle-depots/notify"
	"github.com/castledepotsmail-cyber/castle-depots/shipping"
)

const orderColumns = `id, user_id, status, payment_method, total_amount, paystack_ref,
	is_paid, delivery_address, delivery_latitude, delivery_longitude, shipping_cost,
	tracking_notes, created_at, updated_at`

type OrderHandler struct {
	db       *sql.DB
	notifier *notify.Notifier
	logger   *zap.Logger
}

func NewOrderHandler(db *sql.DB, notifier *notify.Notifier, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{db: db, notifier: notifier, logger: logger}
}

func scanOrder(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Order, error) {
	var o models.Order
	err := scanner.Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentMethod, &o.TotalAmount,
		&o.PaystackRef, &o.IsPaid, &o.DeliveryAddress, &o.DeliveryLatitude,
		&o.DeliveryLongitude, &o.ShippingCost, &o.TrackingNotes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder runs the whole checkout in one transaction. Each product row
// is locked with SELECT ... FOR UPDATE and its stock re-validated under the
// lock, so concurrent checkouts cannot oversell. Any failing line item
// aborts the entire order.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("castle-depots").Start(c.Request.Context(), "CreateOrder")
	defer span.End()

	claims := middleware.CurrentUser(c)

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shippingCost, err := h.quoteShipping(ctx, &req)
	if err != nil {
		var oor *shipping.OutOfRangeError
		if errors.As(err, &oor) {
			middleware.RecordCheckoutFailure("out_of_range")
			c.JSON(http.StatusBadRequest, gin.H{
				"error":    "Delivery location is outside our delivery range",
				"distance": oor.Distance,
			})
			return
		}
		h.logger.Error("Failed to quote shipping", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		h.logger.Error("Failed to begin checkout transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer tx.Rollback()

	total := shippingCost
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		var (
			name          string
			price         float64
			discountPrice *float64
			stock         int
			isActive      bool
			allowPOD      bool
		)
		err := tx.QueryRowContext(ctx,
			`SELECT name, price, discount_price, stock_quantity, is_active, allow_pod
			 FROM products WHERE id = $1 FOR UPDATE`,
			line.ProductID).Scan(&name, &price, &discountPrice, &stock, &isActive, &allowPOD)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				middleware.RecordCheckoutFailure("product_not_found")
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Product %s not found", line.ProductID)})
				return
			}
			h.logger.Error("Failed to lock product row", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		if !isActive {
			middleware.RecordCheckoutFailure("inactive_product")
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s is no longer available", name)})
			return
		}
		if req.PaymentMethod == models.PaymentMethodPayOnDelivery && !allowPOD {
			middleware.RecordCheckoutFailure("pod_not_allowed")
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s cannot be paid on delivery", name)})
			return
		}
		if stock < line.Quantity {
			middleware.RecordCheckoutFailure("insufficient_stock")
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Insufficient stock for %s: %d available, %d requested",
					name, stock, line.Quantity),
			})
			return
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE products SET stock_quantity = stock_quantity - $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
			line.Quantity, line.ProductID); err != nil {
			h.logger.Error("Failed to decrement stock", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		unitPrice := price
		if discountPrice != nil {
			unitPrice = *discountPrice
		}
		total += unitPrice * float64(line.Quantity)

		options := line.SelectedOptions
		if len(options) == 0 {
			options = json.RawMessage("{}")
		}
		items = append(items, models.OrderItem{
			ProductID:       line.ProductID,
			ProductName:     name,
			Quantity:        line.Quantity,
			Price:           unitPrice,
			SelectedOptions: options,
		})
	}

	isPaid := req.PaymentMethod == models.PaymentMethodPaystack && req.PaystackRef != ""
	order, err := scanOrder(tx.QueryRowContext(ctx,
		`INSERT INTO orders
			(user_id, status, payment_method, total_amount, paystack_ref, is_paid,
			 delivery_address, delivery_latitude, delivery_longitude, shipping_cost)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
		 RETURNING `+orderColumns,
		claims.UserID, models.OrderStatusPlaced, req.PaymentMethod, total,
		req.PaystackRef, isPaid, req.DeliveryAddress,
		req.DeliveryLatitude, req.DeliveryLongitude, shippingCost,
	))
	if err != nil {
		h.logger.Error("Failed to insert order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	for i := range items {
		items[i].OrderID = order.ID
		err := tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, quantity, price, selected_options)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			order.ID, items[i].ProductID, items[i].ProductName, items[i].Quantity,
			items[i].Price, []byte(items[i].SelectedOptions)).Scan(&items[i].ID)
		if err != nil {
			h.logger.Error("Failed to insert order item", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
	}

	if err := tx.Commit(); err != nil {
		h.logger.Error("Failed to commit checkout", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	order.Items = items

	middleware.RecordOrderCreated()
	h.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", claims.UserID),
		zap.Float64("total", order.TotalAmount))

	h.notifier.OrderPlaced(ctx, order, claims.Email)

	c.JSON(http.StatusCreated, order)
}

// quoteShipping returns the shipping cost for the order, or 0 when the
// client sent no coordinates or the store location is not configured.
func (h *OrderHandler) quoteShipping(ctx context.Context, req *models.CreateOrderRequest) (float64, error) {
	if req.DeliveryLatitude == nil || req.DeliveryLongitude == nil {
		return 0, nil
	}
	settings, err := database.GetStoreSettings(ctx, h.db)
	if err != nil {
		if errors.Is(err, database.ErrSettingsNotConfigured) {
			return 0, nil
		}
		return 0, err
	}
	quote, err := shipping.Calculate(settings, *req.DeliveryLatitude, *req.DeliveryLongitude)
	if err != nil {
		return 0, err
	}
	return quote.Cost, nil
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	query := "SELECT " + orderColumns + " FROM orders WHERE user_id = $1 ORDER BY created_at DESC"
	args := []interface{}{claims.UserID}
	if claims.IsStaff && c.Query("all") == "true" {
		query = "SELECT " + orderColumns + " FROM orders ORDER BY created_at DESC"
		args = nil
	}

	rows, err := h.db.QueryContext(c.Request.Context(), query, args...)
	if err != nil {
		h.logger.Error("Failed to list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			h.logger.Error("Failed to scan order", zap.Error(err))
			continue
		}
		orders = append(orders, *o)
	}

	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1 AND user_id = $2"
	args := []interface{}{c.Param("id"), claims.UserID}
	if claims.IsStaff {
		query = "SELECT " + orderColumns + " FROM orders WHERE id = $1"
		args = args[:1]
	}

	order, err := scanOrder(h.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		h.logger.Error("Failed to get order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := h.loadItems(ctx, order); err != nil {
		h.logger.Error("Failed to load order items", zap.Error(err))
	}

	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) loadItems(ctx context.Context, order *models.Order) error {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, price, selected_options
		 FROM order_items WHERE order_id = $1`,
		order.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	order.Items = []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.Price, &item.SelectedOptions); err != nil {
			return err
		}
		order.Items = append(order.Items, item)
	}
	return nil
}

// TrackOrder is the public tracking endpoint. It exposes the delivery
// progress but no customer details.
func (h *OrderHandler) TrackOrder(c *gin.Context) {
	var (
		status        models.OrderStatus
		trackingNotes string
		createdAt     sql.NullTime
		updatedAt     sql.NullTime
	)
	err := h.db.QueryRowContext(c.Request.Context(),
		"SELECT status, tracking_notes, created_at, updated_at FROM orders WHERE id = $1",
		c.Param("id")).Scan(&status, &trackingNotes, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		h.logger.Error("Failed to track order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         status,
		"tracking_notes": trackingNotes,
		"created_at":     createdAt.Time,
		"updated_at":     updatedAt.Time,
	})
}

// UpdateOrder is the admin status transition endpoint. Illegal transitions
// are rejected; a persisted status change produces exactly one notification.
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	ctx, span := otel.Tracer("castle-depots").Start(c.Request.Context(), "UpdateOrder")
	defer span.End()

	var req models.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer tx.Rollback()

	current, err := scanOrder(tx.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", c.Param("id")))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		h.logger.Error("Failed to load order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	statusChanged := req.Status != "" && req.Status != current.Status
	if statusChanged && !current.Status.CanTransitionTo(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("invalid status transition: %s -> %s", current.Status, req.Status),
		})
		return
	}

	newStatus := current.Status
	if statusChanged {
		newStatus = req.Status
	}
	isPaid := current.IsPaid
	if req.IsPaid != nil {
		isPaid = *req.IsPaid
	}
	if newStatus == models.OrderStatusPaymentConfirmed {
		isPaid = true
	}
	trackingNotes := current.TrackingNotes
	if req.TrackingNotes != nil {
		trackingNotes = *req.TrackingNotes
	}

	order, err := scanOrder(tx.QueryRowContext(ctx,
		`UPDATE orders SET status = $1, is_paid = $2,
			paystack_ref = COALESCE(NULLIF($3, ''), paystack_ref),
			tracking_notes = $4, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $5
		 RETURNING `+orderColumns,
		newStatus, isPaid, req.PaystackRef, trackingNotes, current.ID,
	))
	if err != nil {
		h.logger.Error("Failed to update order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := tx.Commit(); err != nil {
		h.logger.Error("Failed to commit order update", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if statusChanged {
		var userEmail string
		if err := h.db.QueryRowContext(ctx,
			"SELECT email FROM users WHERE id = $1", order.UserID).Scan(&userEmail); err != nil {
			h.logger.Warn("Failed to resolve order owner email", zap.Error(err))
		}
		h.notifier.OrderStatusChanged(ctx, order, userEmail)
	}

	c.JSON(http.StatusOK, order)
}

// OrderStats summarizes orders for the admin dashboard.
func (h *OrderHandler) OrderStats(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		totalOrders   int
		totalRevenue  float64
		pendingOrders int
	)
	err := h.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(total_amount) FILTER (WHERE status <> 'cancelled'), 0),
			COUNT(*) FILTER (WHERE status IN ('placed', 'payment_confirmed', 'processing'))
		 FROM orders`).Scan(&totalOrders, &totalRevenue, &pendingOrders)
	if err != nil {
		h.logger.Error("Failed to compute order stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	rows, err := h.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC LIMIT 10")
	if err != nil {
		h.logger.Error("Failed to list recent orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	recent := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			h.logger.Error("Failed to scan order", zap.Error(err))
			continue
		}
		recent = append(recent, *o)
	}

	c.JSON(http.StatusOK, gin.H{
		"total_orders":   totalOrders,
		"total_revenue":  totalRevenue,
		"pending_orders": pendingOrders,
		"recent_orders":  recent,
	})
}
