package features

import (
	"context"
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// CustomerSummary is the listing row: profile identity plus the current
// risk posture. Scores come from persisted values when a prior run
// wrote them, otherwise from the heuristic fast path.
type CustomerSummary struct {
	CustomerID             string  `json:"customerId"`
	Name                   string  `json:"name"`
	City                   string  `json:"city"`
	ProductType            string  `json:"productType"`
	CreditScore            int     `json:"creditScore"`
	CreditUtilization      float64 `json:"creditUtilization"`
	CurrentSalaryDelayDays int     `json:"currentSalaryDelayDays"`
	SavingsChangePct       float64 `json:"savingsChangePct"`
	RiskScore              int     `json:"riskScore"`
	RiskLevel              string  `json:"riskLevel"`
	SuggestedAction        string  `json:"suggestedAction"`
}

// FilterAll returns every customer in ascending identifier order.
// Level filters return only matching customers, highest score first.
const FilterAll = "All"

// ListCustomers returns listing rows for the given level filter and
// free-text search. The "All" filter (or empty filter) preserves the
// store's ascending-identifier ordering; any level filter re-orders
// descending by risk score so the worst cases surface first.
func (d *Deriver) ListCustomers(ctx context.Context, filter, search string, limit int) ([]*CustomerSummary, error) {
	profiles, err := d.store.ListProfiles(ctx, search, limit)
	if err != nil {
		return nil, err
	}

	summaries := make([]*CustomerSummary, 0, len(profiles))
	for _, p := range profiles {
		s := summarize(p)
		if filter != "" && filter != FilterAll && s.RiskLevel != filter {
			continue
		}
		summaries = append(summaries, s)
	}

	if filter != "" && filter != FilterAll {
		sort.SliceStable(summaries, func(i, j int) bool {
			return summaries[i].RiskScore > summaries[j].RiskScore
		})
	}

	return summaries, nil
}

func summarize(p *domain.CustomerProfile) *CustomerSummary {
	score := p.RiskScore
	level := p.RiskLevel
	if score <= 0 {
		score = HeuristicScore(p)
		level = ""
	}
	if level == "" {
		level = string(domain.LevelForScore(score))
	}

	return &CustomerSummary{
		CustomerID:             p.CustomerID,
		Name:                   p.Name,
		City:                   p.City,
		ProductType:            p.ProductType,
		CreditScore:            p.CreditScore,
		CreditUtilization:      p.CreditUtilization,
		CurrentSalaryDelayDays: p.CurrentSalaryDelayDays,
		SavingsChangePct:       p.SavingsChangePct,
		RiskScore:              score,
		RiskLevel:              level,
		SuggestedAction:        SuggestedAction(p),
	}
}
