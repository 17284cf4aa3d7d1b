package features

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const (
	dashboardCacheKey = "dash:stats"
	dashboardTTL      = 60 * time.Second

	listingCap      = 10000
	alertDelayFloor = 10
	alertLimit      = 15
	geoRiskTop      = 5
)

// DashboardStats is the portfolio-level aggregate payload.
type DashboardStats struct {
	Summary          DashboardSummary     `json:"summary"`
	RiskDistribution []LevelCount         `json:"riskDistribution"`
	GeoRisk          []CityRisk           `json:"geoRisk"`
	ProductHealth    []ProductHealth      `json:"productHealth"`
	RiskTrend        []TrendPoint         `json:"riskTrend"`
	Alerts           []SalaryDelayAlert   `json:"alerts"`
}

type DashboardSummary struct {
	TotalCustomers        int     `json:"totalCustomers"`
	CriticalRisk          int     `json:"criticalRisk"`
	ActiveAlerts          int     `json:"activeAlerts"`
	InterventionsTriggered int    `json:"interventionsTriggered"`
	EstimatedSavings      float64 `json:"estimatedSavings"`
}

type LevelCount struct {
	Level string `json:"level"`
	Count int    `json:"count"`
}

// CityRisk aggregates per-city exposure. RiskIndex blends average risk
// score with the critical-case share, clamped [10,95].
type CityRisk struct {
	City          string  `json:"city"`
	Customers     int     `json:"customers"`
	CriticalCount int     `json:"criticalCount"`
	RiskIndex     float64 `json:"riskIndex"`
}

// ProductHealth is the per-product delinquency share.
type ProductHealth struct {
	ProductType    string  `json:"productType"`
	Customers      int     `json:"customers"`
	DelinquencyPct float64 `json:"delinquencyPct"` // share at High or Critical
}

type TrendPoint struct {
	Date     string  `json:"date"` // YYYY-MM-DD
	AvgScore float64 `json:"avgScore"`
}

// SalaryDelayAlert surfaces customers whose latest salary credit
// arrived materially late.
type SalaryDelayAlert struct {
	CustomerID      string `json:"customerId"`
	CustomerName    string `json:"customerName"`
	Severity        string `json:"severity"`
	Type            string `json:"type"`
	Message         string `json:"message"`
	SuggestedAction string `json:"suggestedAction"`
}

// DashboardStats aggregates the whole portfolio into one payload.
// Results are cached briefly; the dashboard tolerates staleness.
func (d *Deriver) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	if d.cache != nil {
		if raw, err := d.cache.Get(ctx, dashboardCacheKey); err == nil && raw != nil {
			var stats DashboardStats
			if json.Unmarshal(raw, &stats) == nil {
				return &stats, nil
			}
		}
	}

	stats, err := d.buildDashboard(ctx)
	if err != nil {
		return nil, err
	}

	if d.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			_ = d.cache.Set(ctx, dashboardCacheKey, raw, dashboardTTL)
		}
	}

	return stats, nil
}

func (d *Deriver) buildDashboard(ctx context.Context) (*DashboardStats, error) {
	profiles, err := d.store.ListProfiles(ctx, "", listingCap)
	if err != nil {
		return nil, err
	}
	total, err := d.store.CountProfiles(ctx)
	if err != nil {
		return nil, err
	}
	lags, err := d.store.ListSalaryLags(ctx, alertDelayFloor, alertLimit)
	if err != nil {
		return nil, err
	}

	levelCounts := map[string]int{}
	cityAgg := map[string]*CityRisk{}
	cityScore := map[string]float64{}
	productAgg := map[string]*ProductHealth{}
	productBad := map[string]int{}
	var scoreSum float64

	for _, p := range profiles {
		s := summarize(p)
		levelCounts[s.RiskLevel]++
		scoreSum += float64(s.RiskScore)

		cr := cityAgg[p.City]
		if cr == nil {
			cr = &CityRisk{City: p.City}
			cityAgg[p.City] = cr
		}
		cr.Customers++
		cityScore[p.City] += float64(s.RiskScore)
		if s.RiskLevel == string(domain.LevelCritical) {
			cr.CriticalCount++
		}

		ph := productAgg[p.ProductType]
		if ph == nil {
			ph = &ProductHealth{ProductType: p.ProductType}
			productAgg[p.ProductType] = ph
		}
		ph.Customers++
		if s.RiskLevel == string(domain.LevelCritical) || s.RiskLevel == string(domain.LevelHigh) {
			productBad[p.ProductType]++
		}
	}

	stats := &DashboardStats{
		RiskDistribution: levelDistribution(levelCounts),
		GeoRisk:          topCities(cityAgg, cityScore),
		ProductHealth:    productDistribution(productAgg, productBad),
		Alerts:           delayAlerts(lags),
	}

	var avgScore float64
	if len(profiles) > 0 {
		avgScore = scoreSum / float64(len(profiles))
	}
	stats.RiskTrend = trendSeries(avgScore, d.now())

	critical := levelCounts[string(domain.LevelCritical)]
	stats.Summary = DashboardSummary{
		TotalCustomers:         total,
		CriticalRisk:           critical,
		ActiveAlerts:           len(stats.Alerts),
		InterventionsTriggered: total * 8 / 100,
		EstimatedSavings:       float64(critical) * 185000,
	}

	return stats, nil
}

// levelDistribution emits levels in fixed severity order, including
// empty buckets, so chart axes stay stable.
func levelDistribution(counts map[string]int) []LevelCount {
	order := []domain.RiskLevel{domain.LevelCritical, domain.LevelHigh, domain.LevelMedium, domain.LevelLow}
	out := make([]LevelCount, 0, len(order))
	for _, lvl := range order {
		out = append(out, LevelCount{Level: string(lvl), Count: counts[string(lvl)]})
	}
	return out
}

func topCities(agg map[string]*CityRisk, scores map[string]float64) []CityRisk {
	out := make([]CityRisk, 0, len(agg))
	for city, cr := range agg {
		avg := scores[city] / float64(cr.Customers)
		idx := avg + 15*float64(cr.CriticalCount)/float64(cr.Customers)
		if idx < 10 {
			idx = 10
		}
		if idx > 95 {
			idx = 95
		}
		cr.RiskIndex = round1(idx)
		out = append(out, *cr)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].RiskIndex != out[j].RiskIndex {
			return out[i].RiskIndex > out[j].RiskIndex
		}
		return out[i].City < out[j].City
	})

	if len(out) > geoRiskTop {
		out = out[:geoRiskTop]
	}
	return out
}

func productDistribution(agg map[string]*ProductHealth, bad map[string]int) []ProductHealth {
	out := make([]ProductHealth, 0, len(agg))
	for product, ph := range agg {
		ph.DelinquencyPct = round1(100 * float64(bad[product]) / float64(ph.Customers))
		out = append(out, *ph)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductType < out[j].ProductType })
	return out
}

// trendSeries emits six weekly points converging on the current
// portfolio average. The series is synthetic until enough assessment
// history accrues to replace it.
func trendSeries(avgScore float64, now time.Time) []TrendPoint {
	out := make([]TrendPoint, 0, 6)
	for i := 5; i >= 0; i-- {
		score := avgScore - float64(i)*1.5
		if score < 0 {
			score = 0
		}
		out = append(out, TrendPoint{
			Date:     now.AddDate(0, 0, -7*i).Format("2006-01-02"),
			AvgScore: round1(score),
		})
	}
	return out
}

func delayAlerts(lags []*domain.SalaryLag) []SalaryDelayAlert {
	out := make([]SalaryDelayAlert, 0, len(lags))
	for _, lag := range lags {
		out = append(out, SalaryDelayAlert{
			CustomerID:      lag.CustomerID,
			CustomerName:    lag.CustomerName,
			Severity:        string(domain.LevelCritical),
			Type:            "Salary Delay",
			Message:         fmt.Sprintf("Salary credited %d days late.", lag.DelayDays),
			SuggestedAction: "Proactive restructuring",
		})
	}
	return out
}

func round1(x float64) float64 {
	return float64(int(x*10+0.5)) / 10
}
