package models

import "time"

type CampaignMode string

const (
	// CampaignModeAll applies the discount to every active product.
	CampaignModeAll CampaignMode = "all"
	// CampaignModeCategory applies to products in the target category.
	CampaignModeCategory CampaignMode = "category"
	// CampaignModeManual applies to an explicit product set.
	CampaignModeManual CampaignMode = "manual"
)

type Campaign struct {
	ID                 string       `json:"id"`
	Title              string       `json:"title"`
	Slug               string       `json:"slug"`
	Description        string       `json:"description"`
	StartTime          time.Time    `json:"start_time"`
	EndTime            time.Time    `json:"end_time"`
	IsActive           bool         `json:"is_active"`
	DiscountPercentage float64      `json:"discount_percentage"`
	Mode               CampaignMode `json:"mode"`
	TargetCategoryID   *string      `json:"target_category_id"`
	ThemeMode          string       `json:"theme_mode"`
	PrimaryColor       *string      `json:"primary_color"`
	AccentColor        *string      `json:"accent_color"`
	HeroImage          *string      `json:"hero_image"`
	ProductIDs         []string     `json:"product_ids,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}

type CampaignRequest struct {
	Title              string   `json:"title" binding:"required"`
	Slug               string   `json:"slug" binding:"required"`
	Description        string   `json:"description"`
	StartTime          string   `json:"start_time" binding:"required"`
	EndTime            string   `json:"end_time" binding:"required"`
	IsActive           *bool    `json:"is_active"`
	DiscountPercentage float64  `json:"discount_percentage" binding:"required,gt=0,lte=100"`
	Mode               string   `json:"mode" binding:"required,oneof=all category manual"`
	TargetCategoryID   string   `json:"target_category_id" binding:"omitempty,uuid"`
	ThemeMode          string   `json:"theme_mode" binding:"omitempty,oneof=default dark red green"`
	PrimaryColor       string   `json:"primary_color"`
	AccentColor        string   `json:"accent_color"`
	HeroImage          string   `json:"hero_image"`
	ProductIDs         []string `json:"product_ids" binding:"omitempty,dive,uuid"`
}
