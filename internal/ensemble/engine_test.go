package ensemble

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func stressedVector() *domain.FeatureVector {
	return &domain.FeatureVector{
		CustomerID:         "CUST-STRESS",
		MonthlySalary:      50000,
		CreditScore:        540,
		CreditUtilization:  95,
		DTIRatio:           0.65,
		DistressSpendRatio: 0.20,
		NightLoginRatio:    0.5,
		LoanInquiryCount:   4,
		CurrentSalaryDelay: 25,
		AutoDebitFailCount: 2,
		LiquidityCompression: 45,
		SavingsChangePct:     -45,
		FinancialRunwayDays:  12,
		DiscretionarySpendTrend: 1.0,
	}
}

func cleanVector() *domain.FeatureVector {
	return &domain.FeatureVector{
		CustomerID:              "CUST-CLEAN",
		MonthlySalary:           90000,
		CreditScore:             810,
		CreditUtilization:       20,
		DTIRatio:                0.10,
		SavingsChangePct:        8,
		FinancialRunwayDays:     200,
		DiscretionarySpendTrend: 1.0,
	}
}

func TestPredictBounds(t *testing.T) {
	e := New(NewHeuristicProvider(), discard())

	for _, v := range []*domain.FeatureVector{stressedVector(), cleanVector()} {
		a := e.Predict(v)
		if a.FusionScore < 1 || a.FusionScore > 99 {
			t.Errorf("%s: fusion score out of range: %d", v.CustomerID, a.FusionScore)
		}
		if a.Confidence < 0 || a.Confidence > 1 {
			t.Errorf("%s: confidence out of range: %v", v.CustomerID, a.Confidence)
		}
		for d, s := range a.AgentScores {
			if s < agentFloor || s > agentCeil {
				t.Errorf("%s: agent %s out of range: %d", v.CustomerID, d, s)
			}
			if len(a.Reasons[d]) == 0 {
				t.Errorf("%s: agent %s emitted no reasons", v.CustomerID, d)
			}
		}
		if a.Level != domain.LevelForScore(a.FusionScore) {
			t.Errorf("%s: level %s inconsistent with score %d", v.CustomerID, a.Level, a.FusionScore)
		}
	}
}

func TestPredictStressedIsCritical(t *testing.T) {
	e := New(NewHeuristicProvider(), discard())

	a := e.Predict(stressedVector())
	if a.Level != domain.LevelCritical {
		t.Fatalf("stressed vector should be Critical, got %s (score %d)", a.Level, a.FusionScore)
	}
	if a.AgentScores[domain.DomainVelocity] != agentCeil {
		t.Errorf("severe salary delay should pin velocity agent at %d, got %d",
			agentCeil, a.AgentScores[domain.DomainVelocity])
	}
	if a.Confidence < confidenceOverride {
		t.Errorf("loud agent should floor confidence at %v, got %v", confidenceOverride, a.Confidence)
	}
	if a.Degraded {
		t.Error("healthy provider must not mark assessment degraded")
	}
}

func TestPredictCleanStaysLowWithStableReasons(t *testing.T) {
	e := New(NewHeuristicProvider(), discard())

	a := e.Predict(cleanVector())
	if a.Level != domain.LevelLow {
		t.Fatalf("clean vector should be Low, got %s (score %d)", a.Level, a.FusionScore)
	}
	for d, reasons := range a.Reasons {
		if len(reasons) != 1 {
			t.Errorf("clean vector should emit exactly one stable reason for %s, got %v", d, reasons)
		}
	}
}

func TestLeadDomainTieBreak(t *testing.T) {
	if got := leadDomain(60, 60, 60); got != domain.DomainFinancial {
		t.Errorf("three-way tie should lead financial, got %s", got)
	}
	if got := leadDomain(10, 70, 70); got != domain.DomainBehavioral {
		t.Errorf("behavioral/velocity tie should lead behavioral, got %s", got)
	}
	if got := leadDomain(10, 20, 90); got != domain.DomainVelocity {
		t.Errorf("velocity should lead, got %s", got)
	}
}

func TestConfidenceAgreement(t *testing.T) {
	high := confidence(50, 50, 50)
	if high != 1 {
		t.Errorf("perfect agreement should give confidence 1, got %v", high)
	}
	low := confidence(10, 50, 80)
	if low != confidenceFloor {
		t.Errorf("wide spread should bottom out at the floor, got %v", low)
	}
	loud := confidence(90, 10, 10)
	if loud < confidenceOverride {
		t.Errorf("loud agent should floor confidence at %v, got %v", confidenceOverride, loud)
	}
}

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }
func (failingProvider) Score(*domain.FeatureVector) (map[domain.AgentDomain]AgentResult, error) {
	return nil, errors.New("model file missing")
}

func TestDegradedModeIsDeterministic(t *testing.T) {
	v := stressedVector()

	for name, e := range map[string]*Engine{
		"nil provider":     New(nil, discard()),
		"failing provider": New(failingProvider{}, discard()),
	} {
		t.Run(name, func(t *testing.T) {
			a := e.Predict(v)
			b := e.Predict(v)

			if !a.Degraded {
				t.Fatal("assessment should be marked degraded")
			}
			if a.FusionScore != b.FusionScore {
				t.Errorf("degraded score not reproducible: %d then %d", a.FusionScore, b.FusionScore)
			}
			if a.FusionScore < 1 || a.FusionScore > 99 {
				t.Errorf("degraded score out of range: %d", a.FusionScore)
			}
			for d, reasons := range a.Reasons {
				if len(reasons) == 0 {
					t.Errorf("degraded mode must still explain itself for %s", d)
				}
			}
		})
	}
}

func TestAttributionsRankedAndSigned(t *testing.T) {
	attrs := attributions(stressedVector())
	if len(attrs) == 0 || len(attrs) > attributionTopK {
		t.Fatalf("attribution count out of bounds: %d", len(attrs))
	}
	for i := 1; i < len(attrs); i++ {
		if abs(attrs[i].Impact) > abs(attrs[i-1].Impact) {
			t.Errorf("attributions not ranked by |impact| at %d", i)
		}
	}
	for _, at := range attrs {
		if at.Driver != (at.Impact > 0) {
			t.Errorf("driver flag inconsistent with impact sign: %+v", at)
		}
	}

	cleanAttrs := attributions(cleanVector())
	foundStabilizer := false
	for _, at := range cleanAttrs {
		if !at.Driver {
			foundStabilizer = true
		}
	}
	if !foundStabilizer {
		t.Error("clean vector should surface at least one stabilizing factor")
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
