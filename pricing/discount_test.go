package pricing

import (
	"testing"
	"time"

	"github.com/castledepotsmail-cyber/castle-depots/models"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func campaign(id string, discount float64, mode models.CampaignMode, createdAt time.Time) models.Campaign {
	return models.Campaign{
		ID:                 id,
		IsActive:           true,
		StartTime:          now.Add(-time.Hour),
		EndTime:            now.Add(time.Hour),
		DiscountPercentage: discount,
		Mode:               mode,
		CreatedAt:          createdAt,
	}
}

func TestResolveDiscountPrice_AllMode(t *testing.T) {
	p := models.Product{ID: "p1", CategoryID: "c1", Price: 100}
	active := []models.Campaign{campaign("a", 20, models.CampaignModeAll, now)}

	got := ResolveDiscountPrice(&p, active)
	if got == nil || *got != 80.00 {
		t.Errorf("Expected discount price 80.00, got %v", got)
	}
}

func TestResolveDiscountPrice_HighestDiscountWins(t *testing.T) {
	p := models.Product{ID: "p1", CategoryID: "c1", Price: 200}
	active := []models.Campaign{
		campaign("a", 10, models.CampaignModeAll, now),
		campaign("b", 25, models.CampaignModeAll, now),
		campaign("c", 15, models.CampaignModeAll, now),
	}

	got := ResolveDiscountPrice(&p, active)
	if got == nil || *got != 150.00 {
		t.Errorf("Expected discount price 150.00, got %v", got)
	}
}

func TestResolveDiscountPrice_EqualDiscountTieBreak(t *testing.T) {
	p := models.Product{ID: "p1", CategoryID: "c1", Price: 100}
	earlier := campaign("a", 20, models.CampaignModeAll, now.Add(-48*time.Hour))
	later := campaign("b", 20, models.CampaignModeAll, now.Add(-24*time.Hour))

	// Same percentage either way; both orderings must give the same price.
	first := ResolveDiscountPrice(&p, []models.Campaign{later, earlier})
	second := ResolveDiscountPrice(&p, []models.Campaign{earlier, later})
	if first == nil || second == nil || *first != *second {
		t.Errorf("Tie-break not deterministic: %v vs %v", first, second)
	}
	if *first != 80.00 {
		t.Errorf("Expected 80.00, got %v", *first)
	}
}

func TestResolveDiscountPrice_CategoryMode(t *testing.T) {
	target := "c1"
	active := []models.Campaign{
		func() models.Campaign {
			c := campaign("a", 30, models.CampaignModeCategory, now)
			c.TargetCategoryID = &target
			return c
		}(),
	}

	inCategory := models.Product{ID: "p1", CategoryID: "c1", Price: 100}
	if got := ResolveDiscountPrice(&inCategory, active); got == nil || *got != 70.00 {
		t.Errorf("Expected 70.00 for matching category, got %v", got)
	}

	outOfCategory := models.Product{ID: "p2", CategoryID: "c2", Price: 100}
	if got := ResolveDiscountPrice(&outOfCategory, active); got != nil {
		t.Errorf("Expected no discount for non-matching category, got %v", *got)
	}
}

func TestResolveDiscountPrice_ManualMode(t *testing.T) {
	c := campaign("a", 50, models.CampaignModeManual, now)
	c.ProductIDs = []string{"p1", "p3"}
	active := []models.Campaign{c}

	included := models.Product{ID: "p1", CategoryID: "c1", Price: 40}
	if got := ResolveDiscountPrice(&included, active); got == nil || *got != 20.00 {
		t.Errorf("Expected 20.00 for included product, got %v", got)
	}

	excluded := models.Product{ID: "p2", CategoryID: "c1", Price: 40}
	if got := ResolveDiscountPrice(&excluded, active); got != nil {
		t.Errorf("Expected no discount for excluded product, got %v", *got)
	}
}

func TestResolveDiscountPrice_NeverRaisesManualDiscount(t *testing.T) {
	manual := 50.00
	p := models.Product{ID: "p1", CategoryID: "c1", Price: 100, DiscountPrice: &manual}
	active := []models.Campaign{campaign("a", 20, models.CampaignModeAll, now)}

	got := ResolveDiscountPrice(&p, active)
	if got == nil || *got != 50.00 {
		t.Errorf("Expected existing lower discount 50.00 to be kept, got %v", got)
	}
}

func TestResolveDiscountPrice_CampaignBeatsHigherManualDiscount(t *testing.T) {
	manual := 90.00
	p := models.Product{ID: "p1", CategoryID: "c1", Price: 100, DiscountPrice: &manual}
	active := []models.Campaign{campaign("a", 20, models.CampaignModeAll, now)}

	got := ResolveDiscountPrice(&p, active)
	if got == nil || *got != 80.00 {
		t.Errorf("Expected campaign price 80.00 to beat manual 90.00, got %v", got)
	}
}

func TestResolveDiscountPrice_NeverAbovePrice(t *testing.T) {
	p := models.Product{ID: "p1", CategoryID: "c1", Price: 100}
	for _, discount := range []float64{0.5, 10, 33.3, 99, 100} {
		active := []models.Campaign{campaign("a", discount, models.CampaignModeAll, now)}
		got := ResolveDiscountPrice(&p, active)
		if got != nil && *got > p.Price {
			t.Errorf("Discount %v produced price %v above list price %v", discount, *got, p.Price)
		}
	}
}

func TestActiveCampaigns_WindowBounds(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		isActive bool
		want     int
	}{
		{"inside window", now.Add(-time.Hour), now.Add(time.Hour), true, 1},
		{"starts exactly now", now, now.Add(time.Hour), true, 1},
		{"ends exactly now", now.Add(-time.Hour), now, true, 0},
		{"not started", now.Add(time.Minute), now.Add(time.Hour), true, 0},
		{"already over", now.Add(-2 * time.Hour), now.Add(-time.Hour), true, 0},
		{"switched off", now.Add(-time.Hour), now.Add(time.Hour), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := models.Campaign{IsActive: tt.isActive, StartTime: tt.start, EndTime: tt.end}
			got := ActiveCampaigns([]models.Campaign{c}, now)
			if len(got) != tt.want {
				t.Errorf("Expected %d active campaigns, got %d", tt.want, len(got))
			}
		})
	}
}

func TestApply_OverwritesDiscountPrices(t *testing.T) {
	products := []models.Product{
		{ID: "p1", CategoryID: "c1", Price: 100},
		{ID: "p2", CategoryID: "c1", Price: 50},
	}
	campaigns := []models.Campaign{campaign("a", 10, models.CampaignModeAll, now)}

	Apply(products, campaigns, now)

	if products[0].DiscountPrice == nil || *products[0].DiscountPrice != 90.00 {
		t.Errorf("Expected p1 discount 90.00, got %v", products[0].DiscountPrice)
	}
	if products[1].DiscountPrice == nil || *products[1].DiscountPrice != 45.00 {
		t.Errorf("Expected p2 discount 45.00, got %v", products[1].DiscountPrice)
	}
}
