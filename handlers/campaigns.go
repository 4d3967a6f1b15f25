package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/castledepotsmail-cyber/castle-depots/models"
	"github.com/castledepotsmail-cyber/castle-depots/pricing"
)

type CampaignHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCampaignHandler(db *sql.DB, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{db: db, logger: logger}
}

const campaignColumns = `id, title, slug, description, start_time, end_time, is_active,
	discount_percentage, mode, target_category_id, theme_mode, primary_color,
	accent_color, hero_image, created_at`

func scanCampaign(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Campaign, error) {
	var camp models.Campaign
	err := scanner.Scan(&camp.ID, &camp.Title, &camp.Slug, &camp.Description,
		&camp.StartTime, &camp.EndTime, &camp.IsActive, &camp.DiscountPercentage,
		&camp.Mode, &camp.TargetCategoryID, &camp.ThemeMode, &camp.PrimaryColor,
		&camp.AccentColor, &camp.HeroImage, &camp.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &camp, nil
}

func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT "+campaignColumns+" FROM campaigns ORDER BY created_at DESC")
	if err != nil {
		h.logger.Error("Failed to list campaigns", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		camp, err := scanCampaign(rows)
		if err != nil {
			h.logger.Error("Failed to scan campaign", zap.Error(err))
			continue
		}
		campaigns = append(campaigns, *camp)
	}

	c.JSON(http.StatusOK, campaigns)
}

// ActiveCampaigns lists campaigns whose window contains the current time.
func (h *CampaignHandler) ActiveCampaigns(c *gin.Context) {
	campaigns, err := loadCampaigns(c, h.db)
	if err != nil {
		h.logger.Error("Failed to load campaigns", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, pricing.ActiveCampaigns(campaigns, time.Now()))
}

func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	// "active" is a reserved slug serving the currently running campaigns.
	if c.Param("slug") == "active" {
		h.ActiveCampaigns(c)
		return
	}

	camp, err := scanCampaign(h.db.QueryRowContext(c.Request.Context(),
		"SELECT "+campaignColumns+" FROM campaigns WHERE slug = $1", c.Param("slug")))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
			return
		}
		h.logger.Error("Failed to get campaign", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := h.loadProductIDs(c.Request.Context(), camp); err != nil {
		h.logger.Error("Failed to load campaign products", zap.Error(err))
	}

	c.JSON(http.StatusOK, camp)
}

func (h *CampaignHandler) loadProductIDs(ctx context.Context, camp *models.Campaign) error {
	rows, err := h.db.QueryContext(ctx,
		"SELECT product_id FROM campaign_products WHERE campaign_id = $1", camp.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		camp.ProductIDs = append(camp.ProductIDs, id)
	}
	return nil
}

func parseCampaignWindow(req *models.CampaignRequest) (start, end time.Time, err error) {
	start, err = time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return
	}
	end, err = time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return
	}
	if !end.After(start) {
		err = errors.New("end_time must be after start_time")
	}
	return
}

func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req models.CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, end, err := parseCampaignWindow(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Mode == string(models.CampaignModeCategory) && req.TargetCategoryID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_category_id is required for category mode"})
		return
	}

	ctx := c.Request.Context()
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer tx.Rollback()

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	themeMode := req.ThemeMode
	if themeMode == "" {
		themeMode = "default"
	}

	camp, err := scanCampaign(tx.QueryRowContext(ctx,
		`INSERT INTO campaigns
			(title, slug, description, start_time, end_time, is_active,
			 discount_percentage, mode, target_category_id, theme_mode,
			 primary_color, accent_color, hero_image)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')::uuid, $10,
			 NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''))
		 RETURNING `+campaignColumns,
		req.Title, req.Slug, req.Description, start, end, isActive,
		req.DiscountPercentage, req.Mode, req.TargetCategoryID, themeMode,
		req.PrimaryColor, req.AccentColor, req.HeroImage,
	))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Campaign slug already exists"})
			return
		}
		h.logger.Error("Failed to create campaign", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := replaceCampaignProducts(ctx, tx, camp.ID, req.ProductIDs); err != nil {
		h.logger.Error("Failed to assign campaign products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	camp.ProductIDs = req.ProductIDs

	if err := tx.Commit(); err != nil {
		h.logger.Error("Failed to commit campaign", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, camp)
}

func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	var req models.CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, end, err := parseCampaignWindow(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		h.logger.Error("Failed to begin transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer tx.Rollback()

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	themeMode := req.ThemeMode
	if themeMode == "" {
		themeMode = "default"
	}

	camp, err := scanCampaign(tx.QueryRowContext(ctx,
		`UPDATE campaigns SET
			title = $1, slug = $2, description = $3, start_time = $4, end_time = $5,
			is_active = $6, discount_percentage = $7, mode = $8,
			target_category_id = NULLIF($9, '')::uuid, theme_mode = $10,
			primary_color = NULLIF($11, ''), accent_color = NULLIF($12, ''),
			hero_image = NULLIF($13, '')
		 WHERE id = $14
		 RETURNING `+campaignColumns,
		req.Title, req.Slug, req.Description, start, end, isActive,
		req.DiscountPercentage, req.Mode, req.TargetCategoryID, themeMode,
		req.PrimaryColor, req.AccentColor, req.HeroImage, c.Param("id"),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
			return
		}
		h.logger.Error("Failed to update campaign", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := replaceCampaignProducts(ctx, tx, camp.ID, req.ProductIDs); err != nil {
		h.logger.Error("Failed to assign campaign products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	camp.ProductIDs = req.ProductIDs

	if err := tx.Commit(); err != nil {
		h.logger.Error("Failed to commit campaign", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, camp)
}

func replaceCampaignProducts(ctx context.Context, tx *sql.Tx, campaignID string, productIDs []string) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM campaign_products WHERE campaign_id = $1", campaignID); err != nil {
		return err
	}
	for _, productID := range productIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO campaign_products (campaign_id, product_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			campaignID, productID); err != nil {
			return err
		}
	}
	return nil
}

func (h *CampaignHandler) DeleteCampaign(c *gin.Context) {
	res, err := h.db.ExecContext(c.Request.Context(),
		"DELETE FROM campaigns WHERE id = $1", c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to delete campaign", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
