// Package shipping quotes delivery costs from the store's origin point.
package shipping

import (
	"fmt"
	"math"

	"github.com/castledepotsmail-cyber/castle-depots/models"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// OutOfRangeError reports a destination beyond the configured maximum
// delivery distance. It carries the computed distance for display.
type OutOfRangeError struct {
	Distance float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("location is outside delivery range (%.2f km)", e.Distance)
}

type Quote struct {
	Cost     float64 `json:"cost"`
	Distance float64 `json:"distance"`
}

// Distance computes the great-circle distance in kilometers between two
// lat/lng points using the haversine formula.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Asin(math.Sqrt(a))
	return earthRadiusKm * c
}

// Calculate quotes the delivery cost to the destination. Destinations
// beyond the store's max delivery distance yield an *OutOfRangeError.
func Calculate(settings *models.StoreSettings, lat, lng float64) (*Quote, error) {
	distance := Distance(settings.Latitude, settings.Longitude, lat, lng)
	if settings.MaxDeliveryDistance > 0 && distance > settings.MaxDeliveryDistance {
		return nil, &OutOfRangeError{Distance: round2(distance)}
	}

	cost := settings.BaseShippingCost + distance*settings.CostPerKm
	return &Quote{
		Cost:     round2(cost),
		Distance: round2(distance),
	}, nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
