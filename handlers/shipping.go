package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/castledepotsmail-cyber/castle-depots/database"
	"github.com/castledepotsmail-cyber/castle-depots/models"
	"github.com/castledepotsmail-cyber/castle-depots/shipping"
)

type ShippingHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewShippingHandler(db *sql.DB, logger *zap.Logger) *ShippingHandler {
	return &ShippingHandler{db: db, logger: logger}
}

// CalculateShipping quotes delivery cost for a destination. When the store
// location has not been configured yet the quote is zero with an
// explanatory message rather than an error.
func (h *ShippingHandler) CalculateShipping(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lat"})
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lng"})
		return
	}

	settings, err := database.GetStoreSettings(c.Request.Context(), h.db)
	if err != nil {
		if errors.Is(err, database.ErrSettingsNotConfigured) {
			c.JSON(http.StatusOK, gin.H{
				"cost":     0,
				"distance": 0,
				"message":  "Store location not set",
			})
			return
		}
		h.logger.Error("Failed to load store settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	quote, err := shipping.Calculate(settings, lat, lng)
	if err != nil {
		var oor *shipping.OutOfRangeError
		if errors.As(err, &oor) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":    "Delivery location is outside our delivery range",
				"distance": oor.Distance,
			})
			return
		}
		h.logger.Error("Failed to calculate shipping", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cost": quote.Cost, "distance": quote.Distance})
}

// GetSettings returns the store settings, seeding the default store
// location on first read.
func (h *ShippingHandler) GetSettings(c *gin.Context) {
	ctx := c.Request.Context()

	settings, err := database.GetStoreSettings(ctx, h.db)
	if err != nil {
		if errors.Is(err, database.ErrSettingsNotConfigured) {
			settings, err = database.UpsertStoreSettings(ctx, h.db, &models.StoreSettingsRequest{
				StoreName:           "Castle Depots",
				StoreAddress:        "Nairobi, Kenya",
				Latitude:            -1.2921,
				Longitude:           36.8219,
				CostPerKm:           50,
				BaseShippingCost:    200,
				MaxDeliveryDistance: 50,
			})
		}
		if err != nil {
			h.logger.Error("Failed to load store settings", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
	}

	c.JSON(http.StatusOK, settings)
}

func (h *ShippingHandler) UpdateSettings(c *gin.Context) {
	var req models.StoreSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := database.UpsertStoreSettings(c.Request.Context(), h.db, &req)
	if err != nil {
		h.logger.Error("Failed to update store settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, settings)
}
