package models

import (
	"encoding/json"
	"time"
)

type Category struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Slug  string  `json:"slug"`
	Image *string `json:"image"`
}

type Product struct {
	ID            string          `json:"id"`
	CategoryID    string          `json:"category_id"`
	Name          string          `json:"name"`
	Slug          string          `json:"slug"`
	SKU           string          `json:"sku"`
	Description   string          `json:"description"`
	Price         float64         `json:"price"`
	DiscountPrice *float64        `json:"discount_price"`
	StockQuantity int             `json:"stock_quantity"`
	ImageMain     string          `json:"image_main"`
	IsActive      bool            `json:"is_active"`
	AllowPOD      bool            `json:"allow_pod"`
	Options       json.RawMessage `json:"options"`
	AverageRating float64         `json:"average_rating"`
	ReviewCount   int             `json:"review_count"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type ProductImage struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Image     string `json:"image"`
}

type WishlistItem struct {
	ID      string  `json:"id"`
	UserID  string  `json:"user_id"`
	Product Product `json:"product"`
	AddedAt string  `json:"added_at"`
}

type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryRequest struct {
	Name  string `json:"name" binding:"required"`
	Slug  string `json:"slug" binding:"required"`
	Image string `json:"image"`
}

type CreateProductRequest struct {
	CategoryID    string          `json:"category_id" binding:"required,uuid"`
	Name          string          `json:"name" binding:"required"`
	Slug          string          `json:"slug" binding:"required"`
	SKU           string          `json:"sku"`
	Description   string          `json:"description"`
	Price         float64         `json:"price" binding:"required,gt=0"`
	DiscountPrice *float64        `json:"discount_price" binding:"omitempty,gt=0"`
	StockQuantity int             `json:"stock_quantity" binding:"gte=0"`
	ImageMain     string          `json:"image_main"`
	IsActive      *bool           `json:"is_active"`
	AllowPOD      *bool           `json:"allow_pod"`
	Options       json.RawMessage `json:"options"`
}

type UpdateProductRequest struct {
	CategoryID    string          `json:"category_id" binding:"omitempty,uuid"`
	Name          string          `json:"name"`
	Description   *string         `json:"description"`
	Price         float64         `json:"price" binding:"omitempty,gt=0"`
	DiscountPrice *float64        `json:"discount_price"`
	StockQuantity *int            `json:"stock_quantity" binding:"omitempty,gte=0"`
	ImageMain     string          `json:"image_main"`
	IsActive      *bool           `json:"is_active"`
	AllowPOD      *bool           `json:"allow_pod"`
	Options       json.RawMessage `json:"options"`
}

type WishlistRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
}

type ReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,gte=1,lte=5"`
	Comment string `json:"comment" binding:"required"`
}
