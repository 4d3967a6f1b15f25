package models

import (
	"encoding/json"
	"time"
)

type OrderStatus string

const (
	OrderStatusPlaced           OrderStatus = "placed"
	OrderStatusPaymentConfirmed OrderStatus = "payment_confirmed"
	OrderStatusProcessing       OrderStatus = "processing"
	OrderStatusShipped          OrderStatus = "shipped"
	OrderStatusDelivered        OrderStatus = "delivered"
	OrderStatusCancelled        OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodPaystack      PaymentMethod = "paystack"
	PaymentMethodPayOnDelivery PaymentMethod = "pod"
)

// AllowedTransitions is the order status state machine. Cancelled is
// reachable from every non-terminal state; delivered and cancelled are
// terminal.
var AllowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:           {OrderStatusPaymentConfirmed, OrderStatusCancelled},
	OrderStatusPaymentConfirmed: {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:       {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:          {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:        {},
	OrderStatusCancelled:        {},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range AllowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Order struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	Status            OrderStatus   `json:"status"`
	PaymentMethod     PaymentMethod `json:"payment_method"`
	TotalAmount       float64       `json:"total_amount"`
	PaystackRef       *string       `json:"paystack_ref"`
	IsPaid            bool          `json:"is_paid"`
	DeliveryAddress   string        `json:"delivery_address"`
	DeliveryLatitude  *float64      `json:"delivery_latitude"`
	DeliveryLongitude *float64      `json:"delivery_longitude"`
	ShippingCost      float64       `json:"shipping_cost"`
	TrackingNotes     string        `json:"tracking_notes,omitempty"`
	Items             []OrderItem   `json:"items,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// OrderItem is an immutable snapshot of a product at purchase time. Price
// is never recomputed from the live product row.
type OrderItem struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	Price           float64         `json:"price"`
	SelectedOptions json.RawMessage `json:"selected_options"`
}

type CheckoutItem struct {
	ProductID       string          `json:"product_id" binding:"required,uuid"`
	Quantity        int             `json:"quantity" binding:"required,gt=0"`
	SelectedOptions json.RawMessage `json:"selected_options"`
}

type CreateOrderRequest struct {
	Items             []CheckoutItem `json:"items" binding:"required,min=1,dive"`
	PaymentMethod     PaymentMethod  `json:"payment_method" binding:"required,oneof=paystack pod"`
	DeliveryAddress   string         `json:"delivery_address" binding:"required"`
	DeliveryLatitude  *float64       `json:"delivery_latitude"`
	DeliveryLongitude *float64       `json:"delivery_longitude"`
	PaystackRef       string         `json:"paystack_ref"`
}

type UpdateOrderRequest struct {
	Status        OrderStatus `json:"status" binding:"omitempty,oneof=placed payment_confirmed processing shipped delivered cancelled"`
	IsPaid        *bool       `json:"is_paid"`
	PaystackRef   string      `json:"paystack_ref"`
	TrackingNotes *string     `json:"tracking_notes"`
}

// OrderEvent is published to Kafka on order lifecycle changes. Publishing
// is best-effort and never fails the triggering request.
type OrderEvent struct {
	OrderID     string      `json:"order_id"`
	UserID      string      `json:"user_id"`
	Status      OrderStatus `json:"status"`
	TotalAmount float64     `json:"total_amount"`
	EventType   string      `json:"event_type"` // order_created, order_status_changed
}
