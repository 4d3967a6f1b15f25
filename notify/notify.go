// Package notify turns order lifecycle changes into in-app notifications,
// outbound email and Kafka events. Everything here is a side effect of an
// already-committed business operation, so failures are logged and never
// propagated back to the caller.
package notify

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/castledepotsmail-cyber/castle-depots/email"
	"github.com/castledepotsmail-cyber/castle-depots/events"
	"github.com/castledepotsmail-cyber/castle-depots/middleware"
	"github.com/castledepotsmail-cyber/castle-depots/models"
)

type Notifier struct {
	db       *sql.DB
	mail     *email.Client
	producer *events.Producer
	logger   *zap.Logger
}

func NewNotifier(db *sql.DB, mail *email.Client, producer *events.Producer, logger *zap.Logger) *Notifier {
	return &Notifier{
		db:       db,
		mail:     mail,
		producer: producer,
		logger:   logger,
	}
}

// Create appends one notification to the user's log.
func (n *Notifier) Create(ctx context.Context, userID string, typ models.NotificationType, title, message, link string) error {
	var linkArg interface{}
	if link != "" {
		linkArg = link
	}
	_, err := n.db.ExecContext(ctx,
		"INSERT INTO notifications (user_id, type, title, message, link) VALUES ($1, $2, $3, $4, $5)",
		userID, typ, title, message, linkArg,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	middleware.RecordNotificationSent(string(typ))
	return nil
}

// OrderPlaced records the checkout notification and emails the customer.
func (n *Notifier) OrderPlaced(ctx context.Context, order *models.Order, userEmail string) {
	title := "Order Placed"
	message := fmt.Sprintf("Your order #%s has been placed successfully.", shortID(order.ID))

	if err := n.Create(ctx, order.UserID, models.NotificationOrderPlaced, title, message, "/orders/"+order.ID); err != nil {
		n.logger.Error("Failed to record order-placed notification",
			zap.String("order_id", order.ID), zap.Error(err))
	}

	n.sendMail(userEmail, title, message)
	n.publish(order, "order_created")
}

// OrderStatusChanged records exactly one notification for a persisted
// status change and emails the customer. The delivered + pay-on-delivery +
// unpaid combination gets a payment reminder instead of the generic
// delivered message.
func (n *Notifier) OrderStatusChanged(ctx context.Context, order *models.Order, userEmail string) {
	typ, title, message := statusNotification(order)

	if err := n.Create(ctx, order.UserID, typ, title, message, "/orders/"+order.ID); err != nil {
		n.logger.Error("Failed to record status-change notification",
			zap.String("order_id", order.ID),
			zap.String("status", string(order.Status)),
			zap.Error(err))
	}

	n.sendMail(userEmail, title, message)
	n.publish(order, "order_status_changed")
}

func statusNotification(order *models.Order) (models.NotificationType, string, string) {
	id := shortID(order.ID)
	switch order.Status {
	case models.OrderStatusPaymentConfirmed:
		return models.NotificationOrderConfirmed, "Payment Confirmed",
			fmt.Sprintf("Payment for order #%s has been confirmed.", id)
	case models.OrderStatusProcessing:
		return models.NotificationOrderProcessing, "Order Processing",
			fmt.Sprintf("Order #%s is being packed.", id)
	case models.OrderStatusShipped:
		return models.NotificationOrderShipped, "Out for Delivery",
			fmt.Sprintf("Order #%s is out for delivery.", id)
	case models.OrderStatusDelivered:
		if order.PaymentMethod == models.PaymentMethodPayOnDelivery && !order.IsPaid {
			return models.NotificationPaymentReminder, "Payment Due",
				fmt.Sprintf("Order #%s has been delivered. Please complete your payment.", id)
		}
		return models.NotificationOrderDelivered, "Order Delivered",
			fmt.Sprintf("Order #%s has been delivered. Enjoy!", id)
	case models.OrderStatusCancelled:
		return models.NotificationOrderCancelled, "Order Cancelled",
			fmt.Sprintf("Order #%s has been cancelled.", id)
	default:
		return models.NotificationSystem, "Order Update",
			fmt.Sprintf("Order #%s status updated to %s.", id, order.Status)
	}
}

func (n *Notifier) sendMail(to, subject, body string) {
	if n.mail == nil || to == "" {
		return
	}
	n.mail.SendAsync(email.Message{
		Subject: subject,
		To:      []string{to},
		Text:    body,
	})
}

func (n *Notifier) publish(order *models.Order, eventType string) {
	if n.producer == nil {
		return
	}
	err := n.producer.Publish(models.OrderEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
		EventType:   eventType,
	})
	if err != nil {
		// Don't fail the request, but log the error
		n.logger.Error("Failed to publish order event",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
