package shipping

import (
	"errors"
	"math"
	"testing"

	"github.com/castledepotsmail-cyber/castle-depots/models"
)

// Nairobi CBD, the seeded store origin.
func nairobiSettings() *models.StoreSettings {
	return &models.StoreSettings{
		Latitude:            -1.2921,
		Longitude:           36.8219,
		CostPerKm:           50,
		BaseShippingCost:    200,
		MaxDeliveryDistance: 50,
	}
}

func TestDistance_ZeroForSamePoint(t *testing.T) {
	if d := Distance(-1.2921, 36.8219, -1.2921, 36.8219); d != 0 {
		t.Errorf("Expected zero distance for identical points, got %v", d)
	}
}

func TestDistance_OneDegreeLatitude(t *testing.T) {
	// One degree of latitude is ~111.19 km on a 6371 km sphere.
	d := Distance(0, 36.8219, 1, 36.8219)
	if math.Abs(d-111.19) > 0.1 {
		t.Errorf("Expected ~111.19 km for one degree of latitude, got %v", d)
	}
}

func TestCalculate_CostFormula(t *testing.T) {
	settings := nairobiSettings()

	// ~10 km north of the store: cost must equal base + distance * rate.
	quote, err := Calculate(settings, -1.2021, 36.8219)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(quote.Distance-10.0) > 0.1 {
		t.Errorf("Expected ~10 km, got %v", quote.Distance)
	}
	want := math.Round((settings.BaseShippingCost+quote.Distance*settings.CostPerKm)*100) / 100
	if quote.Cost != want {
		t.Errorf("Expected cost %v, got %v", want, quote.Cost)
	}
	// 10 km at 50/km over a 200 base is 700.
	if math.Abs(quote.Cost-700) > 5 {
		t.Errorf("Expected cost near 700 for ~10 km, got %v", quote.Cost)
	}
}

func TestCalculate_BaseCostAtOrigin(t *testing.T) {
	settings := nairobiSettings()
	quote, err := Calculate(settings, settings.Latitude, settings.Longitude)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if quote.Cost != settings.BaseShippingCost {
		t.Errorf("Expected base cost %v at origin, got %v", settings.BaseShippingCost, quote.Cost)
	}
	if quote.Distance != 0 {
		t.Errorf("Expected zero distance at origin, got %v", quote.Distance)
	}
}

func TestCalculate_MonotonicInDistance(t *testing.T) {
	settings := nairobiSettings()

	prevCost := -1.0
	for _, dLat := range []float64{0, 0.05, 0.1, 0.2, 0.3, 0.4} {
		quote, err := Calculate(settings, settings.Latitude+dLat, settings.Longitude)
		if err != nil {
			t.Fatalf("Unexpected error at offset %v: %v", dLat, err)
		}
		if quote.Cost < prevCost {
			t.Errorf("Cost decreased with distance: %v after %v", quote.Cost, prevCost)
		}
		prevCost = quote.Cost
	}
}

func TestCalculate_OutOfRange(t *testing.T) {
	settings := nairobiSettings()

	// ~111 km away, far past the 50 km limit.
	_, err := Calculate(settings, settings.Latitude+1, settings.Longitude)
	if err == nil {
		t.Fatal("Expected out-of-range error, got nil")
	}

	var oor *OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("Expected *OutOfRangeError, got %T", err)
	}
	if oor.Distance <= settings.MaxDeliveryDistance {
		t.Errorf("Reported distance %v should exceed the %v km limit", oor.Distance, settings.MaxDeliveryDistance)
	}
}

func TestCalculate_ExactlyAtLimitDelivers(t *testing.T) {
	settings := nairobiSettings()
	settings.MaxDeliveryDistance = Distance(settings.Latitude, settings.Longitude, settings.Latitude+0.1, settings.Longitude)

	if _, err := Calculate(settings, settings.Latitude+0.1, settings.Longitude); err != nil {
		t.Errorf("Destination exactly at the limit should be deliverable, got %v", err)
	}
}
