package intervention

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/narrative"
)

// Recorder is the append-only audit contract. Write failures are
// swallowed by the selector; the decision never depends on them.
type Recorder interface {
	Record(ctx context.Context, entry *domain.AuditEntry) error
}

// Selection statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFallback = "fallback"
)

// Outreach channels and timings, tiered by urgency.
const (
	ChannelRMCall        = "rm_call"
	ChannelDirectMessage = "direct_message"
	ChannelInApp         = "in_app"

	TimingImmediate = "immediate"
	Timing24h       = "within_24h"
	Timing72h       = "within_72h"
)

// Base acceptance likelihood per category, adjusted by case type.
var baseAcceptance = map[domain.OfferCategory]float64{
	domain.CategoryLiquidityRelief:      0.72,
	domain.CategoryRestructuring:        0.55,
	domain.CategoryBehavioralCorrection: 0.38,
	domain.CategoryGovernance:           0.25,
	domain.CategoryProactivePositive:    0.64,
}

const costSavingsFraction = 0.18

// Selector walks the compiled cascade, applies governance filtering and
// escalation, and emits exactly one intervention per call. Stateless
// across requests and safe for concurrent use.
type Selector struct {
	catalog   *Catalog
	rules     []*compiledRule
	audit     Recorder
	narrative domain.NarrativeGenerator
	log       *slog.Logger
}

// NewSelector compiles the cascade. audit and generator may be nil:
// selection works without either, substituting swallowed writes and
// templated copy.
func NewSelector(audit Recorder, generator domain.NarrativeGenerator, log *slog.Logger) (*Selector, error) {
	if log == nil {
		log = slog.Default()
	}
	rules, err := compileCascade()
	if err != nil {
		return nil, err
	}
	return &Selector{
		catalog:   NewCatalog(),
		rules:     rules,
		audit:     audit,
		narrative: generator,
		log:       log,
	}, nil
}

// Select picks the intervention for one assessed customer. It never
// returns zero offers: governance exhaustion escalates to the manual
// review offer rather than failing.
func (s *Selector) Select(ctx context.Context, v *domain.FeatureVector, a *domain.RiskAssessment, dctx *domain.DecisionContext) *domain.Intervention {
	in := Input{
		Score:            a.FusionScore,
		Ability:          dctx.AbilityScore,
		Willingness:      dctx.WillingnessScore,
		CaseType:         dctx.CaseType,
		Lead:             a.LeadDomain,
		DistressElevated: v.DistressSpendRatio > 0.10,
		AutoDebitFails:   int(v.AutoDebitFailCount),
	}

	ruleName, category, candidates := s.matchRule(in)
	primary, fallback, category, verdict := s.applyGovernance(category, candidates, in)

	iv := &domain.Intervention{
		CustomerID:        v.CustomerID,
		Primary:           *primary,
		Fallback:          fallback,
		Category:          category,
		RuleName:          ruleName,
		GovernanceVerdict: verdict,
		Impact:            impact(in.Score, primary.Impact, v.LoanAmount),
		Fairness:          fairness(category, in),
		Feedback:          feedback(category, primary, dctx.CaseType),
		Status:            status(a, verdict),
	}
	iv.Channel, iv.Timing = outreach(in.Score)
	iv.Message = s.message(ctx, v, a, iv)

	s.recordAudit(ctx, v.CustomerID, in.Score, iv)
	return iv
}

// matchRule walks the cascade top-down; first match wins. The terminal
// rule is constant true, so a match always exists.
func (s *Selector) matchRule(in Input) (string, domain.OfferCategory, []string) {
	activation := in.activation()
	for _, r := range s.rules {
		ok, err := r.match(activation)
		if err != nil {
			s.log.Warn("cascade rule evaluation failed", "rule", r.name, "error", err)
			continue
		}
		if ok {
			category, candidates := r.decide(in)
			return r.name, category, candidates
		}
	}

	// Unreachable while the terminal rule compiles; kept as a hard
	// floor on the never-zero-offers contract.
	return "default-posture", domain.CategoryProactivePositive, []string{"OFF-STD"}
}

// applyGovernance filters candidates in priority order and escalates:
// named candidates, then any offer in the category, then manual review.
func (s *Selector) applyGovernance(category domain.OfferCategory, candidates []string, in Input) (*domain.Offer, *domain.Offer, domain.OfferCategory, string) {
	primary, fallback := s.firstPassing(offersFor(s.catalog, candidates), in)
	if primary != nil {
		return primary, fallback, category, domain.VerdictApproved
	}

	primary, fallback = s.firstPassing(s.catalog.Category(category), in)
	if primary != nil {
		return primary, fallback, category, domain.VerdictFallback
	}

	// Governance exhausted: recommend human review. This is a valid
	// terminal action, not an error.
	return s.catalog.Get(ManualReviewOfferID), nil, domain.CategoryGovernance, domain.VerdictManualReview
}

// firstPassing returns the first two offers that clear governance.
func (s *Selector) firstPassing(offers []*domain.Offer, in Input) (*domain.Offer, *domain.Offer) {
	var primary, fallback *domain.Offer
	for _, offer := range offers {
		if reason := governanceCheck(offer, in); reason != "" {
			continue
		}
		if primary == nil {
			primary = offer
			continue
		}
		if offer.ID != primary.ID {
			fallback = offer
			break
		}
	}
	return primary, fallback
}

func offersFor(c *Catalog, ids []string) []*domain.Offer {
	out := make([]*domain.Offer, 0, len(ids))
	for _, id := range ids {
		if o := c.Get(id); o != nil {
			out = append(out, o)
		}
	}
	return out
}

// impact derives the monetary estimate. Projected probability never
// exceeds current while the impact coefficient is positive.
func impact(score int, coefficient, loanAmount float64) domain.ImpactEstimate {
	current := math.Min(0.99, float64(score)/140)
	projected := current * (1 - coefficient)
	recovery := loanAmount * (current - projected)

	return domain.ImpactEstimate{
		CurrentDefaultProbability:   round4(current),
		ProjectedDefaultProbability: round4(projected),
		RecoveryGain:                round2(recovery),
		CostSavings:                 round2(recovery * costSavingsFraction),
	}
}

// feedback estimates acceptance from the category baseline adjusted by
// case type: cooperative victims accept more, strategic defaulters
// less, with a hard floor.
func feedback(category domain.OfferCategory, offer *domain.Offer, caseType domain.CaseType) domain.FeedbackSignal {
	acceptance := baseAcceptance[category]
	switch caseType {
	case domain.CaseVictimOfCircumstance:
		acceptance += 0.15
	case domain.CaseStrategicDefaulter:
		acceptance = math.Max(0.10, acceptance-0.20)
	}
	acceptance = math.Min(0.95, acceptance)

	return domain.FeedbackSignal{
		PredictedAcceptance:     round4(acceptance),
		HistoricalEffectiveness: round4(math.Min(0.95, 0.40+offer.Impact)),
	}
}

func status(a *domain.RiskAssessment, verdict string) string {
	if a.Degraded {
		return StatusDegraded
	}
	if verdict != domain.VerdictApproved {
		return StatusFallback
	}
	return StatusOK
}

func outreach(score int) (channel, timing string) {
	switch {
	case score >= 80:
		return ChannelRMCall, TimingImmediate
	case score >= 60:
		return ChannelDirectMessage, Timing24h
	default:
		return ChannelInApp, Timing72h
	}
}

// message renders outreach copy, falling back to the deterministic
// template when the generator is absent or fails.
func (s *Selector) message(ctx context.Context, v *domain.FeatureVector, a *domain.RiskAssessment, iv *domain.Intervention) string {
	in := domain.NarrativeInput{
		CustomerName: v.Name,
		Score:        a.FusionScore,
		Level:        a.Level,
		TopFactors:   topFactors(a),
		Offer:        iv.Primary,
		Channel:      iv.Channel,
	}

	if s.narrative != nil {
		if text, err := s.narrative.Outreach(ctx, in); err == nil && text != "" {
			return text
		} else if err != nil {
			s.log.Warn("narrative generator failed, using template", "customer_id", v.CustomerID, "error", err)
		}
	}
	return narrative.Template(in)
}

func topFactors(a *domain.RiskAssessment) []string {
	if len(a.Attributions) > 0 {
		n := len(a.Attributions)
		if n > 3 {
			n = 3
		}
		factors := make([]string, 0, n)
		for _, at := range a.Attributions[:n] {
			factors = append(factors, at.Feature)
		}
		return factors
	}
	return a.Reasons[a.LeadDomain]
}

// recordAudit appends the selection to the audit sink. Failures are
// logged and swallowed; the intervention already returned stands.
func (s *Selector) recordAudit(ctx context.Context, customerID string, score int, iv *domain.Intervention) {
	if s.audit == nil {
		return
	}

	entry := &domain.AuditEntry{
		ID:                uuid.New().String(),
		Timestamp:         time.Now().UTC(),
		CustomerID:        customerID,
		FusionScore:       score,
		OfferID:           iv.Primary.ID,
		Category:          iv.Category,
		GovernanceVerdict: iv.GovernanceVerdict,
		FairnessFlag:      iv.Fairness.Flag,
	}
	if iv.Fallback != nil {
		entry.FallbackID = iv.Fallback.ID
	}

	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.Warn("audit append failed", "customer_id", customerID, "error", err)
	}
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
func round4(x float64) float64 { return math.Round(x*10000) / 10000 }
