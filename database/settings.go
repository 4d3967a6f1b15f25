package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/castledepotsmail-cyber/castle-depots/models"
)

// ErrSettingsNotConfigured is returned when no store settings row exists yet.
var ErrSettingsNotConfigured = errors.New("store settings not configured")

const settingsColumns = `id, store_name, store_address, latitude, longitude,
	cost_per_km, base_shipping_cost, max_delivery_distance, updated_at`

// GetStoreSettings returns the single store settings row. The table holds
// at most one row; callers must handle ErrSettingsNotConfigured.
func GetStoreSettings(ctx context.Context, db *sql.DB) (*models.StoreSettings, error) {
	var s models.StoreSettings
	err := db.QueryRowContext(ctx,
		"SELECT "+settingsColumns+" FROM store_settings LIMIT 1",
	).Scan(&s.ID, &s.StoreName, &s.StoreAddress, &s.Latitude, &s.Longitude,
		&s.CostPerKm, &s.BaseShippingCost, &s.MaxDeliveryDistance, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingsNotConfigured
		}
		return nil, fmt.Errorf("failed to load store settings: %w", err)
	}
	return &s, nil
}

// UpsertStoreSettings updates the single settings row, creating it on first
// use. Admin-only path, so no locking beyond the statement itself.
func UpsertStoreSettings(ctx context.Context, db *sql.DB, req *models.StoreSettingsRequest) (*models.StoreSettings, error) {
	var s models.StoreSettings
	err := db.QueryRowContext(ctx, `
		UPDATE store_settings SET
			store_name = $1, store_address = $2, latitude = $3, longitude = $4,
			cost_per_km = $5, base_shipping_cost = $6, max_delivery_distance = $7,
			updated_at = CURRENT_TIMESTAMP
		RETURNING `+settingsColumns,
		req.StoreName, req.StoreAddress, req.Latitude, req.Longitude,
		req.CostPerKm, req.BaseShippingCost, req.MaxDeliveryDistance,
	).Scan(&s.ID, &s.StoreName, &s.StoreAddress, &s.Latitude, &s.Longitude,
		&s.CostPerKm, &s.BaseShippingCost, &s.MaxDeliveryDistance, &s.UpdatedAt)
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update store settings: %w", err)
	}

	err = db.QueryRowContext(ctx, `
		INSERT INTO store_settings
			(store_name, store_address, latitude, longitude, cost_per_km, base_shipping_cost, max_delivery_distance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+settingsColumns,
		req.StoreName, req.StoreAddress, req.Latitude, req.Longitude,
		req.CostPerKm, req.BaseShippingCost, req.MaxDeliveryDistance,
	).Scan(&s.ID, &s.StoreName, &s.StoreAddress, &s.Latitude, &s.Longitude,
		&s.CostPerKm, &s.BaseShippingCost, &s.MaxDeliveryDistance, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create store settings: %w", err)
	}
	return &s, nil
}
