package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/castledepotsmail-cyber/castle-depots/middleware"
	"github.com/castledepotsmail-cyber/castle-depots/models"
	"github.com/castledepotsmail-cyber/castle-depots/pricing"
)

type WishlistHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewWishlistHandler(db *sql.DB, logger *zap.Logger) *WishlistHandler {
	return &WishlistHandler{db: db, logger: logger}
}

func (h *WishlistHandler) ListWishlist(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	rows, err := h.db.QueryContext(c.Request.Context(),
		`SELECT w.id, w.user_id, w.added_at, `+productColumns+`
		 FROM wishlist w JOIN products p ON p.id = w.product_id
		 WHERE w.user_id = $1
		 ORDER BY w.added_at DESC`,
		claims.UserID)
	if err != nil {
		h.logger.Error("Failed to list wishlist", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	items := []models.WishlistItem{}
	for rows.Next() {
		var item models.WishlistItem
		p := &item.Product
		err := rows.Scan(&item.ID, &item.UserID, &item.AddedAt,
			&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.SKU, &p.Description,
			&p.Price, &p.DiscountPrice, &p.StockQuantity, &p.ImageMain, &p.IsActive, &p.AllowPOD,
			&p.Options, &p.AverageRating, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			h.logger.Error("Failed to scan wishlist item", zap.Error(err))
			continue
		}
		items = append(items, item)
	}

	campaigns, err := loadCampaigns(c, h.db)
	if err != nil {
		h.logger.Error("Failed to load campaigns for pricing", zap.Error(err))
	} else {
		active := pricing.ActiveCampaigns(campaigns, time.Now())
		for i := range items {
			items[i].Product.DiscountPrice = pricing.ResolveDiscountPrice(&items[i].Product, active)
		}
	}

	c.JSON(http.StatusOK, items)
}

func (h *WishlistHandler) AddToWishlist(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	var req models.WishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var id string
	err := h.db.QueryRowContext(c.Request.Context(),
		`INSERT INTO wishlist (user_id, product_id) VALUES ($1, $2) RETURNING id`,
		claims.UserID, req.ProductID).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				c.JSON(http.StatusOK, gin.H{"message": "Already in wishlist"})
				return
			case "23503":
				c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
				return
			}
		}
		h.logger.Error("Failed to add to wishlist", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "message": "Added to wishlist"})
}

func (h *WishlistHandler) RemoveFromWishlist(c *gin.Context) {
	claims := middleware.CurrentUser(c)

	res, err := h.db.ExecContext(c.Request.Context(),
		"DELETE FROM wishlist WHERE user_id = $1 AND product_id = $2",
		claims.UserID, c.Param("productID"))
	if err != nil {
		h.logger.Error("Failed to remove from wishlist", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not in wishlist"})
		return
	}

	c.Status(http.StatusNoContent)
}
