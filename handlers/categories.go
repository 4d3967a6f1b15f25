package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/castledepotsmail-cyber/castle-depots/models"
)

type CategoryHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCategoryHandler(db *sql.DB, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{db: db, logger: logger}
}

const categoryColumns = "id, name, slug, image"

func scanCategory(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Category, error) {
	var cat models.Category
	if err := scanner.Scan(&cat.ID, &cat.Name, &cat.Slug, &cat.Image); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (h *CategoryHandler) ListCategories(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT "+categoryColumns+" FROM categories ORDER BY name")
	if err != nil {
		h.logger.Error("Failed to list categories", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			h.logger.Error("Failed to scan category", zap.Error(err))
			continue
		}
		categories = append(categories, *cat)
	}

	c.JSON(http.StatusOK, categories)
}

func (h *CategoryHandler) GetCategory(c *gin.Context) {
	cat, err := scanCategory(h.db.QueryRowContext(c.Request.Context(),
		"SELECT "+categoryColumns+" FROM categories WHERE slug = $1", c.Param("slug")))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}
		h.logger.Error("Failed to get category", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, cat)
}

func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req models.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cat, err := scanCategory(h.db.QueryRowContext(c.Request.Context(),
		`INSERT INTO categories (name, slug, image)
		 VALUES ($1, $2, NULLIF($3, ''))
		 RETURNING `+categoryColumns,
		req.Name, req.Slug, req.Image,
	))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Category already exists"})
			return
		}
		h.logger.Error("Failed to create category", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, cat)
}

func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	var req models.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cat, err := scanCategory(h.db.QueryRowContext(c.Request.Context(),
		`UPDATE categories SET name = $1, slug = $2, image = NULLIF($3, '')
		 WHERE id = $4
		 RETURNING `+categoryColumns,
		req.Name, req.Slug, req.Image, c.Param("id"),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
			return
		}
		h.logger.Error("Failed to update category", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, cat)
}

func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	res, err := h.db.ExecContext(c.Request.Context(),
		"DELETE FROM categories WHERE id = $1", c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to delete category", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
