package models

import (
	"encoding/json"
	"time"
)

type NotificationType string

const (
	NotificationOrderPlaced     NotificationType = "order_placed"
	NotificationOrderConfirmed  NotificationType = "order_confirmed"
	NotificationOrderProcessing NotificationType = "order_processing"
	NotificationOrderShipped    NotificationType = "order_shipped"
	NotificationOrderDelivered  NotificationType = "order_delivered"
	NotificationOrderCancelled  NotificationType = "order_cancelled"
	NotificationPaymentSuccess  NotificationType = "payment_success"
	NotificationPaymentReminder NotificationType = "payment_reminder"
	NotificationSystem          NotificationType = "system"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      *string          `json:"link"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
)

type SupportTicket struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	OrderID   *string         `json:"order_id"`
	Subject   string          `json:"subject"`
	Status    TicketStatus    `json:"status"`
	Messages  json.RawMessage `json:"messages"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TicketMessage is one entry in a ticket's message log.
type TicketMessage struct {
	Sender    string    `json:"sender"` // "user" or "admin"
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type ContactMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type NewsletterSubscriber struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

type CreateTicketRequest struct {
	OrderID string `json:"order_id" binding:"omitempty,uuid"`
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message" binding:"required"`
}

type TicketMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

type ContactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message" binding:"required"`
}

type SubscribeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type NewsletterBlastRequest struct {
	Subject   string `json:"subject" binding:"required"`
	Message   string `json:"message" binding:"required"`
	TestEmail string `json:"test_email" binding:"omitempty,email"`
}
