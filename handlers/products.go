package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/castledepotsmail-cyber/castle-depots/cache"
	"github.com/castledepotsmail-cyber/castle-depots/middleware"
	"github.com/castledepotsmail-cyber/castle-depots/models"
	"github.com/castledepotsmail-cyber/castle-depots/pricing"
)

const productCacheTTL = 5 * time.Minute

// productColumns includes rating aggregates, so queries using it need the
// products table aliased as p.
const productColumns = `p.id, p.category_id, p.name, p.slug, p.sku, p.description,
	p.price, p.discount_price, p.stock_quantity, p.image_main, p.is_active, p.allow_pod,
	p.options,
	COALESCE((SELECT AVG(rating) FROM reviews WHERE product_id = p.id), 0),
	(SELECT COUNT(*) FROM reviews WHERE product_id = p.id),
	p.created_at, p.updated_at`

type ProductHandler struct {
	db     *sql.DB
	rdb    *redis.Client
	logger *zap.Logger
}

func NewProductHandler(db *sql.DB, rdb *redis.Client, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{db: db, rdb: rdb, logger: logger}
}

func scanProduct(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Product, error) {
	var p models.Product
	err := scanner.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.SKU, &p.Description,
		&p.Price, &p.DiscountPrice, &p.StockQuantity, &p.ImageMain, &p.IsActive, &p.AllowPOD,
		&p.Options, &p.AverageRating, &p.ReviewCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// loadCampaigns fetches enabled campaigns with their manual product sets,
// for discount resolution at serialization time.
func loadCampaigns(c *gin.Context, db *sql.DB) ([]models.Campaign, error) {
	ctx := c.Request.Context()
	rows, err := db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE is_active = TRUE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	index := map[string]int{}
	for rows.Next() {
		camp, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		index[camp.ID] = len(campaigns)
		campaigns = append(campaigns, *camp)
	}
	if len(campaigns) == 0 {
		return campaigns, nil
	}

	ids := make([]string, 0, len(campaigns))
	for _, camp := range campaigns {
		ids = append(ids, camp.ID)
	}
	prodRows, err := db.QueryContext(ctx,
		"SELECT campaign_id, product_id FROM campaign_products WHERE campaign_id = ANY($1)",
		pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer prodRows.Close()
	for prodRows.Next() {
		var campaignID, productID string
		if err := prodRows.Scan(&campaignID, &productID); err != nil {
			return nil, err
		}
		i := index[campaignID]
		campaigns[i].ProductIDs = append(campaigns[i].ProductIDs, productID)
	}

	return campaigns, nil
}

func (h *ProductHandler) ListProducts(c *gin.Context) {
	ctx, span := otel.Tracer("castle-depots").Start(c.Request.Context(), "ListProducts")
	defer span.End()

	claims := middleware.CurrentUser(c)
	isStaff := claims != nil && claims.IsStaff

	query := "SELECT " + productColumns + " FROM products p"
	where := []string{}
	args := []interface{}{}

	if slug := c.Query("category"); slug != "" {
		args = append(args, slug)
		where = append(where, fmt.Sprintf("p.category_id = (SELECT id FROM categories WHERE slug = $%d)", len(args)))
	}
	if q := c.Query("q"); q != "" {
		args = append(args, "%"+q+"%")
		where = append(where, fmt.Sprintf("(p.name ILIKE $%d OR p.description ILIKE $%d)", len(args), len(args)))
	}
	if v := c.Query("min_price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid min_price"})
			return
		}
		args = append(args, price)
		where = append(where, fmt.Sprintf("COALESCE(p.discount_price, p.price) >= $%d", len(args)))
	}
	if v := c.Query("max_price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid max_price"})
			return
		}
		args = append(args, price)
		where = append(where, fmt.Sprintf("COALESCE(p.discount_price, p.price) <= $%d", len(args)))
	}
	if v := c.Query("on_sale"); v == "true" {
		where = append(where, "p.discount_price IS NOT NULL")
	}
	if v := c.Query("allow_pod"); v == "true" {
		where = append(where, "p.allow_pod = TRUE")
	}
	if !isStaff {
		where = append(where, "p.is_active = TRUE")
	}

	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	switch c.Query("ordering") {
	case "price":
		query += " ORDER BY COALESCE(p.discount_price, p.price)"
	case "-price":
		query += " ORDER BY COALESCE(p.discount_price, p.price) DESC"
	case "created_at":
		query += " ORDER BY p.created_at"
	default:
		query += " ORDER BY p.created_at DESC"
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			h.logger.Error("Failed to scan product", zap.Error(err))
			continue
		}
		products = append(products, *p)
	}

	campaigns, err := loadCampaigns(c, h.db)
	if err != nil {
		h.logger.Error("Failed to load campaigns for pricing", zap.Error(err))
	} else {
		pricing.Apply(products, campaigns, time.Now())
	}

	c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer("castle-depots").Start(c.Request.Context(), "GetProduct")
	defer span.End()

	slug := c.Param("slug")

	var product *models.Product
	if h.rdb != nil {
		if data, err := cache.GetProduct(ctx, h.rdb, slug); err == nil {
			var cached models.Product
			if err := json.Unmarshal(data, &cached); err == nil {
				product = &cached
			}
		}
	}

	if product == nil {
		p, err := scanProduct(h.db.QueryRowContext(ctx,
			"SELECT "+productColumns+" FROM products p WHERE p.slug = $1", slug))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
				return
			}
			h.logger.Error("Failed to get product", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		product = p

		if h.rdb != nil {
			if err := cache.SetProduct(ctx, h.rdb, slug, product, productCacheTTL); err != nil {
				h.logger.Warn("Failed to cache product", zap.String("slug", slug), zap.Error(err))
			}
		}
	}

	claims := middleware.CurrentUser(c)
	if !product.IsActive && (claims == nil || !claims.IsStaff) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	// Discounts are time-dependent so they are resolved on every read,
	// even for cache hits.
	campaigns, err := loadCampaigns(c, h.db)
	if err != nil {
		h.logger.Error("Failed to load campaigns for pricing", zap.Error(err))
	} else {
		product.DiscountPrice = pricing.ResolveDiscountPrice(product, pricing.ActiveCampaigns(campaigns, time.Now()))
	}

	images, err := h.loadImages(c, product.ID)
	if err != nil {
		h.logger.Error("Failed to load product images", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"product": product, "images": images})
}

func (h *ProductHandler) loadImages(c *gin.Context, productID string) ([]models.ProductImage, error) {
	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT id, product_id, image FROM product_images WHERE product_id = $1 ORDER BY created_at",
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []models.ProductImage{}
	for rows.Next() {
		var img models.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.Image); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sku := req.SKU
	if sku == "" {
		sku = "SKU-" + strings.ToUpper(uuid.NewString()[:8])
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	allowPOD := true
	if req.AllowPOD != nil {
		allowPOD = *req.AllowPOD
	}
	options := req.Options
	if len(options) == 0 {
		options = json.RawMessage("[]")
	}

	product, err := scanProduct(h.db.QueryRowContext(c.Request.Context(),
		`INSERT INTO products AS p
			(category_id, name, slug, sku, description, price, discount_price,
			 stock_quantity, image_main, is_active, allow_pod, options)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+productColumns,
		req.CategoryID, req.Name, req.Slug, sku, req.Description, req.Price,
		req.DiscountPrice, req.StockQuantity, req.ImageMain, isActive, allowPOD,
		[]byte(options),
	))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Product slug or SKU already exists"})
			return
		}
		h.logger.Error("Failed to create product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	set := []string{"updated_at = CURRENT_TIMESTAMP"}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if req.CategoryID != "" {
		add("category_id", req.CategoryID)
	}
	if req.Name != "" {
		add("name", req.Name)
	}
	if req.Description != nil {
		add("description", *req.Description)
	}
	if req.Price != 0 {
		add("price", req.Price)
	}
	if req.DiscountPrice != nil {
		if *req.DiscountPrice <= 0 {
			add("discount_price", nil)
		} else {
			add("discount_price", *req.DiscountPrice)
		}
	}
	if req.StockQuantity != nil {
		add("stock_quantity", *req.StockQuantity)
	}
	if req.ImageMain != "" {
		add("image_main", req.ImageMain)
	}
	if req.IsActive != nil {
		add("is_active", *req.IsActive)
	}
	if req.AllowPOD != nil {
		add("allow_pod", *req.AllowPOD)
	}
	if len(req.Options) > 0 {
		add("options", []byte(req.Options))
	}

	args = append(args, c.Param("id"))
	query := fmt.Sprintf("UPDATE products AS p SET %s WHERE p.id = $%d RETURNING %s",
		strings.Join(set, ", "), len(args), productColumns)

	product, err := scanProduct(h.db.QueryRowContext(c.Request.Context(), query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		h.logger.Error("Failed to update product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.invalidateProduct(c, product.Slug)
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	var slug string
	err := h.db.QueryRowContext(c.Request.Context(),
		"DELETE FROM products WHERE id = $1 RETURNING slug", c.Param("id")).Scan(&slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		h.logger.Error("Failed to delete product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.invalidateProduct(c, slug)
	c.Status(http.StatusNoContent)
}

func (h *ProductHandler) AddProductImage(c *gin.Context) {
	var req struct {
		Image string `json:"image" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var img models.ProductImage
	err := h.db.QueryRowContext(c.Request.Context(),
		`INSERT INTO product_images (product_id, image) VALUES ($1, $2)
		 RETURNING id, product_id, image`,
		c.Param("id"), req.Image).Scan(&img.ID, &img.ProductID, &img.Image)
	if err != nil {
		h.logger.Error("Failed to add product image", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, img)
}

func (h *ProductHandler) DeleteProductImage(c *gin.Context) {
	res, err := h.db.ExecContext(c.Request.Context(),
		"DELETE FROM product_images WHERE id = $1", c.Param("imageID"))
	if err != nil {
		h.logger.Error("Failed to delete product image", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ProductHandler) invalidateProduct(c *gin.Context, slug string) {
	if h.rdb == nil {
		return
	}
	if err := cache.DeleteProduct(c.Request.Context(), h.rdb, slug); err != nil {
		h.logger.Warn("Failed to invalidate product cache", zap.String("slug", slug), zap.Error(err))
	}
}
