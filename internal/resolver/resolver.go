// Package resolver separates capacity to repay from intent to repay
// and classifies the customer into a decision-context quadrant.
package resolver

import (
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const (
	abilityFloor = 5
	abilityCeil  = 100

	willingnessFloor = 5
	willingnessCeil  = 99
)

// Scores computed fresh carry this source tag; scores read back from a
// prior authoritative run carry "persisted".
const (
	SourceDerived   = "derived"
	SourcePersisted = "persisted"
)

// Resolver derives the ability/willingness decision context.
// Stateless and safe for concurrent use.
type Resolver struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{log: log}
}

// Resolve builds the decision context for one customer. Persisted
// ability/willingness values from the profile take precedence;
// recomputation from the feature vector is the fallback.
func (r *Resolver) Resolve(profile *domain.CustomerProfile, v *domain.FeatureVector) *domain.DecisionContext {
	ctx := &domain.DecisionContext{Source: SourceDerived}

	if profile != nil && profile.AbilityScore > 0 && profile.WillingnessScore > 0 {
		ctx.AbilityScore = clamp(profile.AbilityScore, abilityFloor, abilityCeil)
		ctx.WillingnessScore = clamp(profile.WillingnessScore, willingnessFloor, willingnessCeil)
		ctx.Source = SourcePersisted
	} else {
		ctx.AbilityScore = abilityScore(v)
		ctx.WillingnessScore = willingnessScore(v)
	}

	ctx.CaseType = classify(ctx.AbilityScore, ctx.WillingnessScore)
	ctx.RareCaseDetected = ctx.CaseType != domain.CaseNormal && ctx.CaseType != domain.CasePrimeCustomer

	return ctx
}

// abilityScore measures capacity to repay. Starts at 100 and walks down
// through obligation, utilization and savings penalties.
func abilityScore(v *domain.FeatureVector) int {
	score := 100.0

	switch {
	case v.InstallmentToIncome > 0.60:
		score -= 45
	case v.InstallmentToIncome > 0.40:
		score -= 25
	}

	switch {
	case v.CreditUtilization > 85:
		score -= 30
	case v.CreditUtilization > 50:
		score -= 15
	}

	if v.SavingsChangePct < -20 {
		score -= 15
	}

	return clamp(int(score), abilityFloor, abilityCeil)
}

// willingnessScore measures intent to repay. Baseline is the bureau
// score scaled to 0-100; spend and delay patterns walk it down.
func willingnessScore(v *domain.FeatureVector) int {
	score := v.CreditScore / 900 * 100

	if v.DistressSpendRatio > 0.10 {
		score -= 30
	}

	if v.SpendLendingApp60d > v.MonthlySalary*0.20 {
		score -= 15
	}

	if v.AvgSalaryDelay > 5 {
		score -= 10
	}

	return clamp(int(score), willingnessFloor, willingnessCeil)
}

// classify maps the two scores to a quadrant. Evaluation order matters
// and is part of the behavioral contract.
func classify(ability, willingness int) domain.CaseType {
	switch {
	case ability > 60 && willingness < 50:
		return domain.CaseStrategicDefaulter
	case ability < 40 && willingness > 60:
		return domain.CaseVictimOfCircumstance
	case ability < 30 && willingness < 30:
		return domain.CaseHighRiskInsolvency
	case ability > 80 && willingness > 80:
		return domain.CasePrimeCustomer
	default:
		return domain.CaseNormal
	}
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
