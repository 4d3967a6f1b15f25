package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/castledepotsmail-cyber/castle-depots/email"
	"github.com/castledepotsmail-cyber/castle-depots/middleware"
	"github.com/castledepotsmail-cyber/castle-depots/models"
)

const ticketColumns = "id, user_id, order_id, subject, status, messages, created_at, updated_at"

type CommunicationHandler struct {
	db     *sql.DB
	mail   *email.Client
	logger *zap.Logger
}

func NewCommunicationHandler(db *sql.DB, mail *email.Client, logger *zap.Logger) *CommunicationHandler {
	return &CommunicationHandler{db: db, mail: mail, logger: logger}
}

func (h *CommunicationHandler) ListNotifications(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	rows, err := h.db.QueryContext(c.Request.Context(),
		`SELECT id, user_id, type, title, message, link, is_read, created_at
		 FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT 100`,
		claims.UserID)
	if err != nil {
		h.logger.Error("Failed to list notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&n.Link, &n.IsRead, &n.CreatedAt); err != nil {
			h.logger.Error("Failed to scan notification", zap.Error(err))
			continue
		}
		notifications = append(notifications, n)
	}

	c.JSON(http.StatusOK, notifications)
}

func (h *CommunicationHandler) MarkNotificationRead(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	res, err := h.db.ExecContext(c.Request.Context(),
		"UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2",
		c.Param("id"), claims.UserID)
	if err != nil {
		h.logger.Error("Failed to mark notification read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h *CommunicationHandler) MarkAllNotificationsRead(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	if _, err := h.db.ExecContext(c.Request.Context(),
		"UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE",
		claims.UserID); err != nil {
		h.logger.Error("Failed to mark notifications read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read"})
}

func (h *CommunicationHandler) SubmitContact(c *gin.Context) {
	var req models.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var msg models.ContactMessage
	err := h.db.QueryRowContext(c.Request.Context(),
		`INSERT INTO contact_messages (name, email, subject, message)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, name, email, subject, message, created_at`,
		req.Name, req.Email, req.Subject, req.Message,
	).Scan(&msg.ID, &msg.Name, &msg.Email, &msg.Subject, &msg.Message, &msg.CreatedAt)
	if err != nil {
		h.logger.Error("Failed to store contact message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Thank you for contacting us. We will get back to you soon."})
}

func (h *CommunicationHandler) ListContactMessages(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(),
		`SELECT id, name, email, subject, message, created_at
		 FROM contact_messages ORDER BY created_at DESC`)
	if err != nil {
		h.logger.Error("Failed to list contact messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	messages := []models.ContactMessage{}
	for rows.Next() {
		var msg models.ContactMessage
		if err := rows.Scan(&msg.ID, &msg.Name, &msg.Email, &msg.Subject,
			&msg.Message, &msg.CreatedAt); err != nil {
			h.logger.Error("Failed to scan contact message", zap.Error(err))
			continue
		}
		messages = append(messages, msg)
	}

	c.JSON(http.StatusOK, messages)
}

func scanTicket(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.SupportTicket, error) {
	var t models.SupportTicket
	err := scanner.Scan(&t.ID, &t.UserID, &t.OrderID, &t.Subject, &t.Status,
		&t.Messages, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *CommunicationHandler) ListTickets(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	query := "SELECT " + ticketColumns + " FROM support_tickets WHERE user_id = $1 ORDER BY updated_at DESC"
	args := []interface{}{claims.UserID}
	if claims.IsStaff {
		query = "SELECT " + ticketColumns + " FROM support_tickets ORDER BY updated_at DESC"
		args = nil
	}

	rows, err := h.db.QueryContext(c.Request.Context(), query, args...)
	if err != nil {
		h.logger.Error("Failed to list tickets", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	tickets := []models.SupportTicket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			h.logger.Error("Failed to scan ticket", zap.Error(err))
			continue
		}
		tickets = append(tickets, *t)
	}

	c.JSON(http.StatusOK, tickets)
}

func (h *CommunicationHandler) CreateTicket(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	var req models.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	messages, err := json.Marshal([]models.TicketMessage{{
		Sender:    "user",
		Message:   req.Message,
		Timestamp: time.Now().UTC(),
	}})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ticket, err := scanTicket(h.db.QueryRowContext(c.Request.Context(),
		`INSERT INTO support_tickets (user_id, order_id, subject, messages)
		 VALUES ($1, NULLIF($2, '')::uuid, $3, $4)
		 RETURNING `+ticketColumns,
		claims.UserID, req.OrderID, req.Subject, messages,
	))
	if err != nil {
		h.logger.Error("Failed to create ticket", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, ticket)
}

func (h *CommunicationHandler) GetTicket(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	query := "SELECT " + ticketColumns + " FROM support_tickets WHERE id = $1 AND user_id = $2"
	args := []interface{}{c.Param("id"), claims.UserID}
	if claims.IsStaff {
		query = "SELECT " + ticketColumns + " FROM support_tickets WHERE id = $1"
		args = args[:1]
	}

	ticket, err := scanTicket(h.db.QueryRowContext(c.Request.Context(), query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
			return
		}
		h.logger.Error("Failed to get ticket", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// AddTicketMessage appends to the ticket's message log. Staff replies move
// the ticket to in_progress; user replies reopen a resolved ticket.
func (h *CommunicationHandler) AddTicketMessage(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	var req models.TicketMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sender := "user"
	if claims.IsStaff {
		sender = "admin"
	}
	entry, err := json.Marshal(models.TicketMessage{
		Sender:    sender,
		Message:   req.Message,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	newStatus := models.TicketStatusOpen
	if claims.IsStaff {
		newStatus = models.TicketStatusInProgress
	}

	query := `UPDATE support_tickets
		 SET messages = messages || $1::jsonb, status = $2, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $3 AND user_id = $4
		 RETURNING ` + ticketColumns
	args := []interface{}{entry, newStatus, c.Param("id"), claims.UserID}
	if claims.IsStaff {
		query = `UPDATE support_tickets
		 SET messages = messages || $1::jsonb, status = $2, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $3
		 RETURNING ` + ticketColumns
		args = args[:3]
	}

	ticket, err := scanTicket(h.db.QueryRowContext(c.Request.Context(), query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
			return
		}
		h.logger.Error("Failed to append ticket message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// ResolveTicket closes a ticket (admin only).
func (h *CommunicationHandler) ResolveTicket(c *gin.Context) {
	ticket, err := scanTicket(h.db.QueryRowContext(c.Request.Context(),
		`UPDATE support_tickets SET status = $1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $2
		 RETURNING `+ticketColumns,
		models.TicketStatusResolved, c.Param("id"),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
			return
		}
		h.logger.Error("Failed to resolve ticket", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// Subscribe adds an email to the newsletter. Re-subscribing a known email
// reactivates it instead of failing.
func (h *CommunicationHandler) Subscribe(c *gin.Context) {
	var req models.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var sub models.NewsletterSubscriber
	err := h.db.QueryRowContext(c.Request.Context(),
		`INSERT INTO newsletter_subscribers (email) VALUES ($1)
		 ON CONFLICT (email) DO UPDATE SET is_active = TRUE
		 RETURNING id, email, is_active`,
		req.Email).Scan(&sub.ID, &sub.Email, &sub.IsActive)
	if err != nil {
		h.logger.Error("Failed to subscribe", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Subscribed to newsletter"})
}

func (h *CommunicationHandler) Unsubscribe(c *gin.Context) {
	var req models.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.db.ExecContext(c.Request.Context(),
		"UPDATE newsletter_subscribers SET is_active = FALSE WHERE email = $1",
		req.Email); err != nil {
		h.logger.Error("Failed to unsubscribe", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unsubscribed from newsletter"})
}

// SendBlast emails every active subscriber in the background. Individual
// send failures are logged and skipped.
func (h *CommunicationHandler) SendBlast(c *gin.Context) {
	var req models.NewsletterBlastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.TestEmail != "" {
		if err := h.mail.Send(c.Request.Context(), email.Message{
			Subject: req.Subject,
			To:      []string{req.TestEmail},
			Text:    req.Message,
		}); err != nil {
			h.logger.Error("Failed to send test email", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send test email"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Test email sent"})
		return
	}

	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT email FROM newsletter_subscribers WHERE is_active = TRUE")
	if err != nil {
		h.logger.Error("Failed to load subscribers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	recipients := []string{}
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			continue
		}
		recipients = append(recipients, addr)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		sent := 0
		for _, addr := range recipients {
			if err := h.mail.Send(ctx, email.Message{
				Subject: req.Subject,
				To:      []string{addr},
				Text:    req.Message,
			}); err != nil {
				h.logger.Warn("Failed to send newsletter email",
					zap.String("to", addr), zap.Error(err))
				continue
			}
			sent++
		}
		h.logger.Info("Newsletter blast finished",
			zap.Int("sent", sent), zap.Int("total", len(recipients)))
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "Newsletter is being sent", "recipients": len(recipients)})
}
