package models

import "time"

// StoreSettings is a single-row configuration table: one store, one
// origin point for shipping quotes.
type StoreSettings struct {
	ID                  string    `json:"id"`
	StoreName           string    `json:"store_name"`
	StoreAddress        string    `json:"store_address"`
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	CostPerKm           float64   `json:"cost_per_km"`
	BaseShippingCost    float64   `json:"base_shipping_cost"`
	MaxDeliveryDistance float64   `json:"max_delivery_distance"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type StoreSettingsRequest struct {
	StoreName           string  `json:"store_name" binding:"required"`
	StoreAddress        string  `json:"store_address" binding:"required"`
	Latitude            float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude           float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
	CostPerKm           float64 `json:"cost_per_km" binding:"required,gte=0"`
	BaseShippingCost    float64 `json:"base_shipping_cost" binding:"gte=0"`
	MaxDeliveryDistance float64 `json:"max_delivery_distance" binding:"required,gt=0"`
}
