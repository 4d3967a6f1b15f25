package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/castledepotsmail-cyber/castle-depots/middleware"
	"github.com/castledepotsmail-cyber/castle-depots/models"
)

type ReviewHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewReviewHandler(db *sql.DB, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{db: db, logger: logger}
}

func (h *ReviewHandler) ListReviews(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(),
		`SELECT r.id, r.product_id, r.user_id, u.username, r.rating, r.comment, r.created_at
		 FROM reviews r JOIN users u ON u.id = r.user_id
		 WHERE r.product_id = (SELECT id FROM products WHERE slug = $1)
		 ORDER BY r.created_at DESC`,
		c.Param("slug"))
	if err != nil {
		h.logger.Error("Failed to list reviews", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserID, &r.Username,
			&r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			h.logger.Error("Failed to scan review", zap.Error(err))
			continue
		}
		reviews = append(reviews, r)
	}

	c.JSON(http.StatusOK, reviews)
}

func (h *ReviewHandler) CreateReview(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	var req models.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var r models.Review
	err := h.db.QueryRowContext(c.Request.Context(),
		`INSERT INTO reviews (product_id, user_id, rating, comment)
		 VALUES ((SELECT id FROM products WHERE slug = $1), $2, $3, $4)
		 RETURNING id, product_id, user_id, rating, comment, created_at`,
		c.Param("slug"), claims.UserID, req.Rating, req.Comment,
	).Scan(&r.ID, &r.ProductID, &r.UserID, &r.Rating, &r.Comment, &r.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				c.JSON(http.StatusBadRequest, gin.H{"error": "You have already reviewed this product"})
				return
			case "23502":
				c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
				return
			}
		}
		h.logger.Error("Failed to create review", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if err := h.db.QueryRowContext(c.Request.Context(),
		"SELECT username FROM users WHERE id = $1", claims.UserID).Scan(&r.Username); err != nil {
		h.logger.Warn("Failed to resolve reviewer username", zap.Error(err))
	}

	c.JSON(http.StatusCreated, r)
}

func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	// Staff may remove any review, users only their own.
	query := "DELETE FROM reviews WHERE id = $1 AND user_id = $2"
	args := []interface{}{c.Param("id"), claims.UserID}
	if claims.IsStaff {
		query = "DELETE FROM reviews WHERE id = $1"
		args = args[:1]
	}

	res, err := h.db.ExecContext(c.Request.Context(), query, args...)
	if err != nil {
		h.logger.Error("Failed to delete review", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Review not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
