package ensemble

import (
	"math"
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// attributionTopK bounds the ranked explanation payload.
const attributionTopK = 6

// attributions ranks the raw signals the agents read, mapped to their
// owning domain, with impact sign separating risk drivers from
// stabilizing factors. This is the threshold-inspection fallback that
// works without any external attribution mechanism.
func attributions(v *domain.FeatureVector) []domain.FeatureAttribution {
	var out []domain.FeatureAttribution

	add := func(feature string, d domain.AgentDomain, impact float64) {
		if impact == 0 {
			return
		}
		out = append(out, domain.FeatureAttribution{
			Feature: feature,
			Domain:  d,
			Impact:  impact,
			Driver:  impact > 0,
		})
	}

	// Financial
	switch {
	case v.DTIRatio > 0.60:
		add("debt_to_income", domain.DomainFinancial, 0.30)
	case v.DTIRatio > 0.40:
		add("debt_to_income", domain.DomainFinancial, 0.18)
	case v.DTIRatio > 0 && v.DTIRatio < 0.20:
		add("debt_to_income", domain.DomainFinancial, -0.10)
	}
	switch {
	case v.CreditScore > 0 && v.CreditScore < 650:
		add("credit_score", domain.DomainFinancial, 0.20)
	case v.CreditScore >= 750:
		add("credit_score", domain.DomainFinancial, -0.15)
	}
	switch {
	case v.CreditUtilization > 80:
		add("credit_utilization", domain.DomainFinancial, 0.22)
	case v.CreditUtilization > 0 && v.CreditUtilization < 30:
		add("credit_utilization", domain.DomainFinancial, -0.10)
	}
	if v.LiquidityCompression > 10 {
		add("liquidity_compression", domain.DomainFinancial, 0.12)
	} else if v.SavingsChangePct > 5 {
		add("savings_growth", domain.DomainFinancial, -0.12)
	}
	if v.FinancialRunwayDays > 0 && v.FinancialRunwayDays < 30 {
		add("financial_runway", domain.DomainFinancial, 0.10)
	}

	// Behavioral
	if v.DistressSpendRatio > 0.05 {
		add("distress_spend_ratio", domain.DomainBehavioral, math.Min(0.35, v.DistressSpendRatio*2))
	}
	if v.NightLoginRatio > 0.25 {
		add("night_login_ratio", domain.DomainBehavioral, 0.12)
	}
	if v.LoanInquiryCount >= 1 {
		add("loan_inquiries", domain.DomainBehavioral, math.Min(0.15, 0.05*v.LoanInquiryCount))
	}
	if v.DiscretionarySpendTrend < 0.50 {
		add("discretionary_spend_trend", domain.DomainBehavioral, 0.12)
	}

	// Velocity
	if v.CurrentSalaryDelay > 0 {
		add("salary_delay", domain.DomainVelocity, math.Min(0.40, v.CurrentSalaryDelay/25))
	} else {
		add("salary_on_time", domain.DomainVelocity, -0.10)
	}
	if v.AutoDebitFailCount > 0 {
		add("auto_debit_failures", domain.DomainVelocity, math.Min(0.40, 0.18*v.AutoDebitFailCount))
	}
	if v.UtilityPaymentLatency > 7 {
		add("utility_payment_latency", domain.DomainVelocity, 0.10)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Impact) > math.Abs(out[j].Impact)
	})
	if len(out) > attributionTopK {
		out = out[:attributionTopK]
	}
	return out
}
