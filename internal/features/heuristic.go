package features

import "github.com/opensource-finance/kestrel/internal/domain"

// HeuristicScore is the profile-only fast path used for listings and as
// the degraded-mode floor. Additive escalation on salary delay and
// utilization plus a deterministic per-customer jitter; clamped [1,99].
func HeuristicScore(p *domain.CustomerProfile) int {
	score := 15

	delay := p.CurrentSalaryDelayDays
	if delay > 0 {
		score += 20
	}
	if delay >= 5 {
		score += 30
	}
	if delay >= 10 {
		score += 30
	}
	if p.CreditUtilization > 80 {
		score += 20
	}
	if p.SavingsChangePct < -30 {
		score += 15
	}

	score += int(domain.Seed("risk", p.CustomerID) % 10)

	if score > 99 {
		score = 99
	}
	if score < 1 {
		score = 1
	}
	return score
}

// SuggestedAction returns the listing-level action hint. Persisted
// values from a prior authoritative run win over the rule chain.
func SuggestedAction(p *domain.CustomerProfile) string {
	if p.SuggestedAction != "" {
		return p.SuggestedAction
	}
	switch {
	case p.CurrentSalaryDelayDays >= 10:
		return "Proactive restructuring call"
	case p.CurrentSalaryDelayDays > 0:
		return "Salary delay check-in"
	case p.CreditUtilization > 85:
		return "Utilization cap review"
	case p.SavingsChangePct < -30:
		return "Savings protection outreach"
	default:
		return "Standard monitoring"
	}
}
