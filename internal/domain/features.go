package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
)

// VectorSize is the canonical encoded feature-vector length. Downstream
// model providers assume this input shape; named signals occupy the head
// of the vector and deterministic filler pads the remainder.
const VectorSize = 150

// RiskLevel is the categorical label derived from a fusion score.
type RiskLevel string

const (
	LevelCritical RiskLevel = "Critical"
	LevelHigh     RiskLevel = "High"
	LevelMedium   RiskLevel = "Medium"
	LevelLow      RiskLevel = "Low"
)

// LevelForScore maps a score to its risk level. The partition is
// exhaustive and monotonic: Critical >= 85, High >= 45, Medium >= 30.
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= 85:
		return LevelCritical
	case score >= 45:
		return LevelHigh
	case score >= 30:
		return LevelMedium
	default:
		return LevelLow
	}
}

// FeatureVector holds the named signals derived for one customer.
// All default substitution happens in the Feature Deriver; consumers
// read fields directly and never re-default.
type FeatureVector struct {
	CustomerID string `json:"customerId"`
	Name       string `json:"name"`

	// Financial
	AnnualIncome       float64 `json:"annualIncome"`
	MonthlySalary      float64 `json:"monthlySalary"`
	CreditScore        float64 `json:"creditScore"`
	CreditUtilization  float64 `json:"creditUtilization"`
	SavingsChangePct   float64 `json:"savingsChangePct"`
	LoanAmount         float64 `json:"loanAmount"`
	MonthlyInstallment float64 `json:"monthlyInstallment"`
	TotalSpend30d      float64 `json:"totalSpend30d"`
	SpendGambling60d   float64 `json:"spendGambling60d"`
	SpendLendingApp60d float64 `json:"spendLendingApp60d"`
	SpendInstallment60d float64 `json:"spendInstallment60d"`
	DTIRatio            float64 `json:"dtiRatio"`
	InstallmentToIncome float64 `json:"installmentToIncome"`
	DistressSpendRatio  float64 `json:"distressSpendRatio"` // high-risk category spend / monthly income
	FinancialRunwayDays float64 `json:"financialRunwayDays"`
	LiquidityCompression float64 `json:"liquidityCompression"` // |negative savings change|, 0 if savings grew
	CashHoardingIndex    float64 `json:"cashHoardingIndex"`    // cash-channel spend / total outflow

	// Behavioral
	LoginCount180d          float64 `json:"loginCount180d"`
	NightLoginRatio         float64 `json:"nightLoginRatio"`
	BehavioralAnxietyIndex  float64 `json:"behavioralAnxietyIndex"` // balance-check frequency, normalized
	LoanInquiryCount        float64 `json:"loanInquiryCount"`
	ActivityVelocity        float64 `json:"activityVelocity"` // recent activity rate vs baseline
	DiscretionarySpendTrend float64 `json:"discretionarySpendTrend"` // recent week / prior three weeks, clamped

	// Temporal
	CurrentSalaryDelay    float64 `json:"currentSalaryDelay"`
	AvgSalaryDelay        float64 `json:"avgSalaryDelay"`
	MaxSalaryDelay        float64 `json:"maxSalaryDelay"`
	SalaryDelayIndex      float64 `json:"salaryDelayIndex"` // current / (historical avg + 1)
	SalaryDelayTrend      float64 `json:"salaryDelayTrend"` // positive = worsening
	IncomeVolatility      float64 `json:"incomeVolatility"` // coefficient of variation of salary credits
	AutoDebitFailCount    float64 `json:"autoDebitFailCount"`
	UtilityPaymentLatency float64 `json:"utilityPaymentLatency"` // mean days past due
}

// Seed derives a deterministic 64-bit seed from the given parts.
// All pseudo-randomness in the pipeline flows through seeds built here so
// that identical inputs always reproduce identical outputs.
func Seed(parts ...string) int64 {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	sum := h.Sum(nil)
	return int64(binary.BigEndian.Uint64(sum[:8]) & 0x7fffffffffffffff)
}

// named returns the ordered named-signal slice. Order is part of the
// encoding contract and must not be rearranged.
func (v *FeatureVector) named() []float64 {
	return []float64{
		v.AnnualIncome, v.MonthlySalary, v.CreditScore, v.CreditUtilization,
		v.SavingsChangePct, v.LoanAmount, v.MonthlyInstallment,
		v.TotalSpend30d, v.SpendGambling60d, v.SpendLendingApp60d,
		v.SpendInstallment60d, v.DTIRatio, v.InstallmentToIncome,
		v.DistressSpendRatio, v.FinancialRunwayDays, v.LiquidityCompression,
		v.CashHoardingIndex,
		v.LoginCount180d, v.NightLoginRatio, v.BehavioralAnxietyIndex,
		v.LoanInquiryCount, v.ActivityVelocity, v.DiscretionarySpendTrend,
		v.CurrentSalaryDelay, v.AvgSalaryDelay, v.MaxSalaryDelay,
		v.SalaryDelayIndex, v.SalaryDelayTrend, v.IncomeVolatility,
		v.AutoDebitFailCount, v.UtilityPaymentLatency,
	}
}

// Encode produces the canonical VectorSize-length numeric vector: named
// signals first, then deterministic pseudo-random filler seeded from the
// customer identifier. Filler values carry no analytic meaning; only the
// size and reproducibility are contractual.
func (v *FeatureVector) Encode() []float64 {
	out := make([]float64, 0, VectorSize)
	out = append(out, v.named()...)

	rng := rand.New(rand.NewSource(Seed("feat", v.CustomerID)))
	for len(out) < VectorSize {
		out = append(out, rng.NormFloat64())
	}
	return out[:VectorSize]
}
