package services

import (
	"time"

	"realty/internal/models"
)

// TierPlan describes one listing tier offered by the selector.
type TierPlan struct {
	Level    models.Tier   `json:"level"`
	Name     string        `json:"name"`
	Price    int64         `json:"price"` // whole currency units
	Duration time.Duration `json:"-"`
	Days     int           `json:"durationDays"`
	Features []string      `json:"features"`
}

const paidTierDuration = 30 * 24 * time.Hour

var tierPlans = []TierPlan{
	{
		Level: models.TierFree,
		Name:  "Free",
		Price: 0,
		Features: []string{
			"Standard listing",
			"Up to 5 photos",
			"Basic search placement",
		},
	},
	{
		Level:    models.TierPaid,
		Name:     "Enhanced",
		Price:    300,
		Duration: paidTierDuration,
		Days:     30,
		Features: []string{
			"Featured badge",
			"Up to 20 photos",
			"Higher search placement",
			"Listing statistics",
		},
	},
	{
		Level:    models.TierPremium,
		Name:     "Premium",
		Price:    500,
		Duration: paidTierDuration,
		Days:     30,
		Features: []string{
			"Everything in Enhanced",
			"Premium badge",
			"Top of search results",
			"Homepage carousel slot",
			"Priority support",
		},
	},
}

// Plans returns the tier catalog in display order.
func Plans() []TierPlan {
	out := make([]TierPlan, len(tierPlans))
	copy(out, tierPlans)
	return out
}

func PlanFor(level models.Tier) (TierPlan, bool) {
	for _, p := range tierPlans {
		if p.Level == level {
			return p, true
		}
	}
	return TierPlan{}, false
}

// tierRank orders tiers by catalog position; unknown tiers rank below free.
func tierRank(level models.Tier) int {
	for i, p := range tierPlans {
		if p.Level == level {
			return i
		}
	}
	return -1
}
