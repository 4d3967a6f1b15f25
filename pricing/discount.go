// Package pricing resolves campaign discounts into display prices.
// Campaign discounts are never persisted on the product row; they are
// computed at serialization time from whatever campaigns are live.
package pricing

import (
	"math"
	"time"

	"github.com/castledepotsmail-cyber/castle-depots/models"
)

// ActiveCampaigns filters campaigns down to those whose window contains
// now (start inclusive, end exclusive) and that are switched on.
func ActiveCampaigns(campaigns []models.Campaign, now time.Time) []models.Campaign {
	var active []models.Campaign
	for _, c := range campaigns {
		if !c.IsActive {
			continue
		}
		if now.Before(c.StartTime) || !now.Before(c.EndTime) {
			continue
		}
		active = append(active, c)
	}
	return active
}

// appliesTo reports whether a campaign includes the given product.
func appliesTo(c *models.Campaign, productID, categoryID string) bool {
	switch c.Mode {
	case models.CampaignModeAll:
		return true
	case models.CampaignModeCategory:
		return c.TargetCategoryID != nil && *c.TargetCategoryID == categoryID
	case models.CampaignModeManual:
		for _, id := range c.ProductIDs {
			if id == productID {
				return true
			}
		}
	}
	return false
}

// ResolveDiscountPrice computes the effective display discount price for a
// product against the given active campaign set. Among applicable campaigns
// the highest discount percentage wins; ties go to the earliest-created
// campaign so the result is deterministic. A manual discount already lower
// than the campaign-derived candidate is never raised. Returns nil when no
// discount applies at all.
func ResolveDiscountPrice(product *models.Product, active []models.Campaign) *float64 {
	var best *models.Campaign
	for i := range active {
		c := &active[i]
		if !appliesTo(c, product.ID, product.CategoryID) {
			continue
		}
		if best == nil ||
			c.DiscountPercentage > best.DiscountPercentage ||
			(c.DiscountPercentage == best.DiscountPercentage && c.CreatedAt.Before(best.CreatedAt)) {
			best = c
		}
	}

	if best == nil {
		return product.DiscountPrice
	}

	candidate := round2(product.Price * (1 - best.DiscountPercentage/100))
	if product.DiscountPrice != nil && *product.DiscountPrice < candidate {
		return product.DiscountPrice
	}
	return &candidate
}

// Apply overwrites each product's DiscountPrice with its resolved value.
func Apply(products []models.Product, campaigns []models.Campaign, now time.Time) {
	active := ActiveCampaigns(campaigns, now)
	if len(active) == 0 {
		return
	}
	for i := range products {
		products[i].DiscountPrice = ResolveDiscountPrice(&products[i], active)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
