// Package intervention walks the governed offer cascade and emits
// exactly one primary offer per assessment.
package intervention

import "github.com/opensource-finance/kestrel/internal/domain"

// ManualReviewOfferID is the terminal escalation offer. It must always
// pass governance, so its cap sits at the score ceiling.
const ManualReviewOfferID = "OFF-MANUAL-REVIEW"

// Catalog is the fixed offer inventory, keyed by id and grouped by
// category in priority order.
type Catalog struct {
	byID       map[string]*domain.Offer
	byCategory map[domain.OfferCategory][]*domain.Offer
}

// NewCatalog builds the standard inventory. Category slices are in
// fixed priority order; that order is part of the selection contract.
func NewCatalog() *Catalog {
	offers := []*domain.Offer{
		// Liquidity Relief: short-term cash pressure
		{ID: "OFF-SAL-ADV", Name: "Salary Advance", Category: domain.CategoryLiquidityRelief,
			Impact: 0.40, MaxEligibleScore: 75, IncreasesExposure: true},
		{ID: "OFF-OD-LIMIT", Name: "Temporary Overdraft Limit", Category: domain.CategoryLiquidityRelief,
			Impact: 0.35, MaxEligibleScore: 70, IncreasesExposure: true},
		{ID: "OFF-FEE-WAIVER", Name: "Fee Waiver Pack", Category: domain.CategoryLiquidityRelief,
			Impact: 0.20, MaxEligibleScore: 95},

		// Restructuring: obligation reshaping
		{ID: "OFF-HOLIDAY-3M", Name: "Three-Month Payment Holiday", Category: domain.CategoryRestructuring,
			Impact: 0.45, MaxEligibleScore: 90, PaymentPause: true},
		{ID: "OFF-TENURE-EXT", Name: "Loan Tenure Extension", Category: domain.CategoryRestructuring,
			Impact: 0.35, MaxEligibleScore: 95},
		{ID: "OFF-RATE-REDUCE", Name: "Interest Rate Reduction", Category: domain.CategoryRestructuring,
			Impact: 0.25, MaxEligibleScore: 85},

		// Behavioral Correction: spend-pattern intervention
		{ID: "OFF-MERCHANT-BLOCK", Name: "High-Risk Merchant Block", Category: domain.CategoryBehavioralCorrection,
			Impact: 0.30, MaxEligibleScore: 95},
		{ID: "OFF-SPEND-COACH", Name: "Spend Coaching Program", Category: domain.CategoryBehavioralCorrection,
			Impact: 0.20, MaxEligibleScore: 90},
		{ID: "OFF-WELLNESS", Name: "Financial Wellness Course", Category: domain.CategoryBehavioralCorrection,
			Impact: 0.15, MaxEligibleScore: 80},

		// Governance: control and recovery
		{ID: "OFF-LIMIT-FREEZE", Name: "Credit Limit Freeze", Category: domain.CategoryGovernance,
			Impact: 0.25, MaxEligibleScore: 99},
		{ID: "OFF-RECOVERY-CALL", Name: "Early Recovery Call", Category: domain.CategoryGovernance,
			Impact: 0.20, MaxEligibleScore: 99},
		{ID: ManualReviewOfferID, Name: "Manual Case Review", Category: domain.CategoryGovernance,
			Impact: 0.10, MaxEligibleScore: 99},

		// Proactive Positive: retention for healthy customers
		{ID: "OFF-SMART-SAVER", Name: "Smart Saver Nudge", Category: domain.CategoryProactivePositive,
			Impact: 0.10, MaxEligibleScore: 50},
		{ID: "OFF-LOYALTY", Name: "Loyalty Reward Boost", Category: domain.CategoryProactivePositive,
			Impact: 0.08, MaxEligibleScore: 45},
		{ID: "OFF-STD", Name: "Standard Monitoring", Category: domain.CategoryProactivePositive,
			Impact: 0.05, MaxEligibleScore: 99},
	}

	c := &Catalog{
		byID:       make(map[string]*domain.Offer, len(offers)),
		byCategory: make(map[domain.OfferCategory][]*domain.Offer),
	}
	for _, o := range offers {
		c.byID[o.ID] = o
		c.byCategory[o.Category] = append(c.byCategory[o.Category], o)
	}
	return c
}

// Get returns the offer for an id, or nil for an unknown id.
func (c *Catalog) Get(id string) *domain.Offer {
	return c.byID[id]
}

// Category returns the category's offers in priority order.
func (c *Catalog) Category(cat domain.OfferCategory) []*domain.Offer {
	return c.byCategory[cat]
}
