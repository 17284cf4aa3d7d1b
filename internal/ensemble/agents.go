package ensemble

import "github.com/opensource-finance/kestrel/internal/domain"

// Agent score bounds. Every agent output is clamped into this range
// before fusion.
const (
	agentFloor = 5
	agentCeil  = 99
)

func clampAgent(score int) int {
	if score < agentFloor {
		return agentFloor
	}
	if score > agentCeil {
		return agentCeil
	}
	return score
}

// financialAgent scores repayment-capacity stress from ratio signals.
// Reason codes are emitted only for thresholds actually crossed.
func financialAgent(v *domain.FeatureVector) AgentResult {
	score := 20
	var reasons []string

	switch {
	case v.DTIRatio > 0.60:
		score += 30
		reasons = append(reasons, "critical debt-to-income load")
	case v.DTIRatio > 0.40:
		score += 18
		reasons = append(reasons, "elevated debt-to-income load")
	}

	switch {
	case v.CreditScore > 0 && v.CreditScore < 550:
		score += 25
		reasons = append(reasons, "deep subprime credit score")
	case v.CreditScore > 0 && v.CreditScore < 650:
		score += 12
		reasons = append(reasons, "subprime credit score")
	}

	switch {
	case v.CreditUtilization > 90:
		score += 25
		reasons = append(reasons, "maxed-out credit utilization")
	case v.CreditUtilization > 80:
		score += 15
		reasons = append(reasons, "high credit utilization")
	case v.CreditUtilization > 50:
		score += 8
		reasons = append(reasons, "elevated credit utilization")
	}

	switch {
	case v.LiquidityCompression > 30:
		score += 12
		reasons = append(reasons, "severe savings drawdown")
	case v.LiquidityCompression > 10:
		score += 6
		reasons = append(reasons, "savings drawdown")
	}

	if v.FinancialRunwayDays < 30 {
		score += 10
		reasons = append(reasons, "financial runway under a month")
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "financial profile stable")
	}
	return AgentResult{Score: clampAgent(score), Reasons: reasons}
}

// behavioralAgent scores app-usage and spend-pattern stress.
func behavioralAgent(v *domain.FeatureVector) AgentResult {
	score := 15
	var reasons []string

	switch {
	case v.DistressSpendRatio > 0.15:
		score += 35
		reasons = append(reasons, "heavy high-risk category spend")
	case v.DistressSpendRatio > 0.05:
		score += 18
		reasons = append(reasons, "elevated high-risk category spend")
	}

	switch {
	case v.NightLoginRatio > 0.40:
		score += 15
		reasons = append(reasons, "frequent night-time app activity")
	case v.NightLoginRatio > 0.25:
		score += 8
		reasons = append(reasons, "raised night-time app activity")
	}

	switch {
	case v.LoanInquiryCount >= 3:
		score += 15
		reasons = append(reasons, "repeated loan shopping")
	case v.LoanInquiryCount >= 1:
		score += 6
		reasons = append(reasons, "recent loan inquiry")
	}

	if v.BehavioralAnxietyIndex > 0.30 {
		score += 10
		reasons = append(reasons, "compulsive balance checking")
	}

	// Belt-tightening: discretionary spend collapsing against its own
	// baseline reads as anticipated income stress.
	if v.DiscretionarySpendTrend < 0.50 {
		score += 12
		reasons = append(reasons, "sharp discretionary spend contraction")
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "behavioral profile stable")
	}
	return AgentResult{Score: clampAgent(score), Reasons: reasons}
}

// velocityAgent scores temporal cadence stress. Salary delay escalates
// in tiers to the ceiling; auto-debit failures weigh per occurrence.
func velocityAgent(v *domain.FeatureVector) AgentResult {
	score := 10
	var reasons []string

	switch {
	case v.CurrentSalaryDelay >= 15:
		score = agentCeil
		reasons = append(reasons, "salary severely delayed")
	case v.CurrentSalaryDelay >= 10:
		score += 45
		reasons = append(reasons, "salary delayed beyond ten days")
	case v.CurrentSalaryDelay >= 5:
		score += 30
		reasons = append(reasons, "salary delayed beyond five days")
	case v.CurrentSalaryDelay > 0:
		score += 15
		reasons = append(reasons, "salary credit running late")
	}

	if v.SalaryDelayTrend > 2 {
		score += 12
		reasons = append(reasons, "salary delays worsening month over month")
	}

	if v.ActivityVelocity > 2.5 {
		score += 10
		reasons = append(reasons, "app activity spiking above baseline")
	}

	if v.AutoDebitFailCount > 0 {
		score += 18 * int(v.AutoDebitFailCount)
		reasons = append(reasons, "auto-debit failures on record")
	}

	if v.UtilityPaymentLatency > 7 {
		score += 10
		reasons = append(reasons, "utility bills settling late")
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "payment cadence stable")
	}
	return AgentResult{Score: clampAgent(score), Reasons: reasons}
}
