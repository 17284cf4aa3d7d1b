package intervention

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newSelector(t *testing.T, audit Recorder) *Selector {
	t.Helper()
	s, err := NewSelector(audit, nil, discard())
	if err != nil {
		t.Fatalf("selector construction: %v", err)
	}
	return s
}

func assessment(score int, lead domain.AgentDomain) *domain.RiskAssessment {
	return &domain.RiskAssessment{
		FusionScore: score,
		Level:       domain.LevelForScore(score),
		Confidence:  0.8,
		AgentScores: map[domain.AgentDomain]int{lead: score},
		Reasons:     map[domain.AgentDomain][]string{lead: {"test reason"}},
		LeadDomain:  lead,
	}
}

func decisionCtx(ability, willingness int, caseType domain.CaseType) *domain.DecisionContext {
	return &domain.DecisionContext{
		AbilityScore:     ability,
		WillingnessScore: willingness,
		CaseType:         caseType,
		RareCaseDetected: caseType != domain.CaseNormal && caseType != domain.CasePrimeCustomer,
	}
}

func vector(id string) *domain.FeatureVector {
	return &domain.FeatureVector{CustomerID: id, Name: "Test Customer", LoanAmount: 500000}
}

func TestSelectVictimGetsLiquidityRelief(t *testing.T) {
	s := newSelector(t, nil)

	iv := s.Select(context.Background(), vector("CUST-VICTIM"),
		assessment(55, domain.DomainFinancial),
		decisionCtx(35, 75, domain.CaseVictimOfCircumstance))

	if iv.Category != domain.CategoryLiquidityRelief {
		t.Fatalf("category: got %s, want LiquidityRelief", iv.Category)
	}
	if iv.RuleName != "victim-liquidity-relief" {
		t.Errorf("rule: got %s", iv.RuleName)
	}
	if iv.GovernanceVerdict != domain.VerdictApproved {
		t.Errorf("verdict: got %s", iv.GovernanceVerdict)
	}
	if iv.Primary.ID != "OFF-SAL-ADV" {
		t.Errorf("primary: got %s, want OFF-SAL-ADV at score 55", iv.Primary.ID)
	}
}

func TestSelectBehavioralCorrectionWithElevatedDistress(t *testing.T) {
	s := newSelector(t, nil)

	v := vector("CUST-BEHAV")
	v.DistressSpendRatio = 0.20
	v.MonthlySalary = 50000

	iv := s.Select(context.Background(), v,
		assessment(55, domain.DomainBehavioral),
		decisionCtx(75, 30, domain.CaseNormal))

	if iv.Category != domain.CategoryBehavioralCorrection {
		t.Fatalf("category: got %s, want BehavioralCorrection", iv.Category)
	}
	if iv.Primary.ID != "OFF-MERCHANT-BLOCK" {
		t.Errorf("elevated distress should pick the merchant block, got %s", iv.Primary.ID)
	}
}

func TestSelectExtremeRiskStrategicGetsManualReviewTier(t *testing.T) {
	s := newSelector(t, nil)

	iv := s.Select(context.Background(), vector("CUST-STRAT"),
		assessment(92, domain.DomainFinancial),
		decisionCtx(80, 20, domain.CaseStrategicDefaulter))

	if iv.Category != domain.CategoryGovernance {
		t.Fatalf("category: got %s, want Governance", iv.Category)
	}
	if iv.RuleName != "extreme-risk-control" {
		t.Errorf("rule: got %s", iv.RuleName)
	}
	if iv.Primary.ID != ManualReviewOfferID {
		t.Errorf("primary: got %s, want manual review tier", iv.Primary.ID)
	}
	if iv.Channel != ChannelRMCall || iv.Timing != TimingImmediate {
		t.Errorf("extreme risk outreach: got %s/%s", iv.Channel, iv.Timing)
	}
	// strategic defaulter context: punitive category is not flagged
	if iv.Fairness.Flag != domain.FairnessClear {
		t.Errorf("fairness: got %s, want clear", iv.Fairness.Flag)
	}
}

func TestSelectExposureOfferRejectedAboveCap(t *testing.T) {
	s := newSelector(t, nil)

	// Victim at score 70: salary advance leads the candidate list but
	// increases exposure, so governance rejects it and selection falls
	// through to the fee waiver.
	iv := s.Select(context.Background(), vector("CUST-EXPO"),
		assessment(70, domain.DomainFinancial),
		decisionCtx(35, 75, domain.CaseVictimOfCircumstance))

	if iv.Primary.ID != "OFF-FEE-WAIVER" {
		t.Fatalf("primary: got %s, want OFF-FEE-WAIVER after exposure rejection", iv.Primary.ID)
	}
	if iv.Primary.IncreasesExposure {
		t.Error("selected offer must not increase exposure above the cap")
	}
	if iv.GovernanceVerdict != domain.VerdictApproved {
		t.Errorf("fall-through within candidates keeps approved verdict, got %s", iv.GovernanceVerdict)
	}
}

func TestSelectNeverReturnsExposureAboveCap(t *testing.T) {
	s := newSelector(t, nil)

	for score := 66; score <= 99; score += 3 {
		for _, caseType := range []domain.CaseType{
			domain.CaseNormal, domain.CaseStrategicDefaulter, domain.CaseVictimOfCircumstance,
			domain.CaseHighRiskInsolvency, domain.CasePrimeCustomer,
		} {
			iv := s.Select(context.Background(), vector("CUST-SWEEP"),
				assessment(score, domain.DomainVelocity),
				decisionCtx(50, 50, caseType))

			if iv.Primary.IncreasesExposure {
				t.Errorf("score %d case %s: exposure offer %s selected", score, caseType, iv.Primary.ID)
			}
			if iv.Primary.MaxEligibleScore < score {
				t.Errorf("score %d case %s: offer %s cap %d below score",
					score, caseType, iv.Primary.ID, iv.Primary.MaxEligibleScore)
			}
			if iv.Fallback != nil && iv.Fallback.ID == iv.Primary.ID {
				t.Errorf("score %d case %s: fallback duplicates primary", score, caseType)
			}
			if iv.Status == "" {
				t.Errorf("score %d case %s: empty status", score, caseType)
			}
		}
	}
}

func TestSelectPaymentPauseBlockedByBounceHistory(t *testing.T) {
	s := newSelector(t, nil)

	v := vector("CUST-BOUNCE")
	v.AutoDebitFailCount = 3

	iv := s.Select(context.Background(), v,
		assessment(75, domain.DomainFinancial),
		decisionCtx(35, 75, domain.CaseNormal)) // forces restructuring-relief rule

	if iv.Primary.PaymentPause {
		t.Errorf("payment pause selected despite bounce history: %s", iv.Primary.ID)
	}
	if iv.Category != domain.CategoryRestructuring {
		t.Errorf("category: got %s, want Restructuring", iv.Category)
	}
}

func TestSelectProactiveForHealthyCustomer(t *testing.T) {
	s := newSelector(t, nil)

	iv := s.Select(context.Background(), vector("CUST-OK"),
		assessment(25, domain.DomainFinancial),
		decisionCtx(90, 90, domain.CasePrimeCustomer))

	if iv.Category != domain.CategoryProactivePositive {
		t.Fatalf("category: got %s, want ProactivePositive", iv.Category)
	}
	if iv.Channel != ChannelInApp {
		t.Errorf("low risk should use in-app channel, got %s", iv.Channel)
	}
}

func TestFairnessReviewForNonStrategicGovernance(t *testing.T) {
	got := fairness(domain.CategoryGovernance, Input{Score: 55, CaseType: domain.CaseHighRiskInsolvency})
	if got.Flag != domain.FairnessReview {
		t.Errorf("non-strategic governance below floor should flag review, got %s", got.Flag)
	}

	clear := fairness(domain.CategoryGovernance, Input{Score: 92, CaseType: domain.CaseNormal})
	if clear.Flag != domain.FairnessClear {
		t.Errorf("extreme score governance is proportionate: got %s", clear.Flag)
	}

	relief := fairness(domain.CategoryLiquidityRelief, Input{Score: 40, CaseType: domain.CaseNormal})
	if relief.Flag != domain.FairnessClear {
		t.Errorf("non-punitive category never flags: got %s", relief.Flag)
	}
}

func TestImpactMonotonicity(t *testing.T) {
	est := impact(70, 0.40, 500000)

	if est.ProjectedDefaultProbability > est.CurrentDefaultProbability {
		t.Errorf("projected %v exceeds current %v", est.ProjectedDefaultProbability, est.CurrentDefaultProbability)
	}
	if est.RecoveryGain <= 0 {
		t.Errorf("positive impact coefficient should yield positive recovery, got %v", est.RecoveryGain)
	}
	wantCurrent := 0.5
	if est.CurrentDefaultProbability != wantCurrent {
		t.Errorf("current probability: got %v, want %v", est.CurrentDefaultProbability, wantCurrent)
	}
	if est.CostSavings != round2(est.RecoveryGain*costSavingsFraction) {
		t.Errorf("cost savings inconsistent with recovery gain")
	}

	ceiling := impact(99, 0.40, 500000)
	if ceiling.CurrentDefaultProbability > 0.99 {
		t.Errorf("current probability must cap at 0.99, got %v", ceiling.CurrentDefaultProbability)
	}
}

func TestFeedbackAdjustments(t *testing.T) {
	offer := &domain.Offer{Impact: 0.40}

	victim := feedback(domain.CategoryLiquidityRelief, offer, domain.CaseVictimOfCircumstance)
	if victim.PredictedAcceptance != 0.87 {
		t.Errorf("victim acceptance: got %v, want 0.87", victim.PredictedAcceptance)
	}

	strategic := feedback(domain.CategoryGovernance, offer, domain.CaseStrategicDefaulter)
	if strategic.PredictedAcceptance != 0.10 {
		t.Errorf("strategic acceptance should floor at 0.10, got %v", strategic.PredictedAcceptance)
	}

	if victim.HistoricalEffectiveness != 0.80 {
		t.Errorf("effectiveness: got %v, want 0.80", victim.HistoricalEffectiveness)
	}
}

type captureRecorder struct {
	entries []*domain.AuditEntry
	err     error
}

func (c *captureRecorder) Record(_ context.Context, e *domain.AuditEntry) error {
	if c.err != nil {
		return c.err
	}
	c.entries = append(c.entries, e)
	return nil
}

func TestSelectAppendsAudit(t *testing.T) {
	rec := &captureRecorder{}
	s := newSelector(t, rec)

	iv := s.Select(context.Background(), vector("CUST-AUDIT"),
		assessment(92, domain.DomainFinancial),
		decisionCtx(80, 20, domain.CaseStrategicDefaulter))

	if len(rec.entries) != 1 {
		t.Fatalf("want one audit entry, got %d", len(rec.entries))
	}
	e := rec.entries[0]
	if e.CustomerID != "CUST-AUDIT" || e.FusionScore != 92 {
		t.Errorf("entry fields: %+v", e)
	}
	if e.OfferID != iv.Primary.ID || e.GovernanceVerdict != iv.GovernanceVerdict {
		t.Errorf("entry should mirror the selection: %+v", e)
	}
	if e.ID == "" || e.Timestamp.IsZero() {
		t.Errorf("entry missing id or timestamp: %+v", e)
	}
}

func TestSelectSwallowsAuditFailure(t *testing.T) {
	rec := &captureRecorder{err: errors.New("sink down")}
	s := newSelector(t, rec)

	iv := s.Select(context.Background(), vector("CUST-AUDITFAIL"),
		assessment(40, domain.DomainFinancial),
		decisionCtx(70, 70, domain.CaseNormal))

	if iv == nil || iv.Primary.ID == "" {
		t.Fatal("audit failure must not affect the selection")
	}
}

func TestSelectDegradedStatusPropagates(t *testing.T) {
	s := newSelector(t, nil)

	a := assessment(40, domain.DomainFinancial)
	a.Degraded = true

	iv := s.Select(context.Background(), vector("CUST-DEG"), a,
		decisionCtx(70, 70, domain.CaseNormal))

	if iv.Status != StatusDegraded {
		t.Errorf("status: got %s, want degraded", iv.Status)
	}
}

func TestSelectMessageNeverEmpty(t *testing.T) {
	s := newSelector(t, nil)

	iv := s.Select(context.Background(), vector("CUST-MSG"),
		assessment(55, domain.DomainVelocity),
		decisionCtx(50, 50, domain.CaseNormal))

	if iv.Message == "" {
		t.Fatal("message must not be empty without a generator")
	}
}
