package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/castledepotsmail-cyber/castle-depots/middleware"
	"github.com/castledepotsmail-cyber/castle-depots/models"
)

type UserHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewUserHandler(db *sql.DB, logger *zap.Logger) *UserHandler {
	return &UserHandler{db: db, logger: logger}
}

const addressColumns = "id, user_id, title, full_name, phone_number, street_address, city, postal_code, is_default"

func scanAddress(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Address, error) {
	var a models.Address
	err := scanner.Scan(&a.ID, &a.UserID, &a.Title, &a.FullName, &a.PhoneNumber,
		&a.StreetAddress, &a.City, &a.PostalCode, &a.IsDefault)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (h *UserHandler) ListAddresses(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT "+addressColumns+" FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, title",
		claims.UserID)
	if err != nil {
		h.logger.Error("Failed to list addresses", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	addresses := []models.Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			h.logger.Error("Failed to scan address", zap.Error(err))
			continue
		}
		addresses = append(addresses, *a)
	}

	c.JSON(http.StatusOK, addresses)
}

func (h *UserHandler) CreateAddress(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	var req models.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if req.IsDefault {
		// A new default unsets the user's previous default.
		if _, err := h.db.ExecContext(ctx,
			"UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default = TRUE",
			claims.UserID); err != nil {
			h.logger.Error("Failed to clear default address", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
	}

	address, err := scanAddress(h.db.QueryRowContext(ctx,
		`INSERT INTO addresses (user_id, title, full_name, phone_number, street_address, city, postal_code, is_default)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		 RETURNING `+addressColumns,
		claims.UserID, req.Title, req.FullName, req.PhoneNumber, req.StreetAddress,
		req.City, req.PostalCode, req.IsDefault,
	))
	if err != nil {
		h.logger.Error("Failed to create address", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, address)
}

func (h *UserHandler) UpdateAddress(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	id := c.Param("id")

	var req models.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if req.IsDefault {
		if _, err := h.db.ExecContext(ctx,
			"UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default = TRUE AND id <> $2",
			claims.UserID, id); err != nil {
			h.logger.Error("Failed to clear default address", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
	}

	address, err := scanAddress(h.db.QueryRowContext(ctx,
		`UPDATE addresses SET
			title = $1, full_name = $2, phone_number = $3, street_address = $4,
			city = $5, postal_code = NULLIF($6, ''), is_default = $7
		 WHERE id = $8 AND user_id = $9
		 RETURNING `+addressColumns,
		req.Title, req.FullName, req.PhoneNumber, req.StreetAddress, req.City,
		req.PostalCode, req.IsDefault, id, claims.UserID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Address not found"})
			return
		}
		h.logger.Error("Failed to update address", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, address)
}

func (h *UserHandler) DeleteAddress(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	res, err := h.db.ExecContext(c.Request.Context(),
		"DELETE FROM addresses WHERE id = $1 AND user_id = $2", c.Param("id"), claims.UserID)
	if err != nil {
		h.logger.Error("Failed to delete address", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Address not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListUsers is the admin user directory.
func (h *UserHandler) ListUsers(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC")
	if err != nil {
		h.logger.Error("Failed to list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName,
			&u.LastName, &u.PhoneNumber, &u.GoogleID, &u.ProfilePicture, &u.IsStaff, &u.CreatedAt); err != nil {
			h.logger.Error("Failed to scan user", zap.Error(err))
			continue
		}
		users = append(users, u)
	}

	c.JSON(http.StatusOK, users)
}

// SetStaff promotes or demotes a user (admin only).
func (h *UserHandler) SetStaff(c *gin.Context) {
	var req struct {
		IsStaff bool `json:"is_staff"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.db.ExecContext(c.Request.Context(),
		"UPDATE users SET is_staff = $1 WHERE id = $2", req.IsStaff, c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to update staff flag", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User updated"})
}

// DeleteUser removes an account and, via cascades, its addresses, orders
// and notifications.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims.UserID == c.Param("id") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete your own account"})
		return
	}

	res, err := h.db.ExecContext(c.Request.Context(),
		"DELETE FROM users WHERE id = $1", c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to delete user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
