package domain

import "time"

// OfferCategory groups catalog offers by intervention strategy.
// Categories are mutually exclusive.
type OfferCategory string

const (
	CategoryLiquidityRelief      OfferCategory = "LiquidityRelief"
	CategoryRestructuring        OfferCategory = "Restructuring"
	CategoryBehavioralCorrection OfferCategory = "BehavioralCorrection"
	CategoryGovernance           OfferCategory = "Governance"
	CategoryProactivePositive    OfferCategory = "ProactivePositive"
)

// Offer is one catalog entry.
type Offer struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Category OfferCategory `json:"category"`

	// Impact is the expected default-probability reduction, in (0,1).
	Impact float64 `json:"impact"`

	// MaxEligibleScore is the highest fusion score this offer may serve.
	MaxEligibleScore int `json:"maxEligibleScore"`

	// IncreasesExposure marks offers that extend additional credit.
	IncreasesExposure bool `json:"increasesExposure"`

	// PaymentPause marks deferral-style offers, ineligible for customers
	// with a history of bounced auto-debits.
	PaymentPause bool `json:"paymentPause,omitempty"`
}

// Governance verdicts attached to a selected offer.
const (
	VerdictApproved     = "approved"      // primary cascade candidate passed
	VerdictFallback     = "fallback"      // category fallback after rejections
	VerdictManualReview = "manual_review" // governance exhausted, human review
)

// ImpactEstimate quantifies the monetary effect of an intervention.
type ImpactEstimate struct {
	CurrentDefaultProbability   float64 `json:"currentDefaultProbability"`
	ProjectedDefaultProbability float64 `json:"projectedDefaultProbability"`
	RecoveryGain                float64 `json:"recoveryGain"`
	CostSavings                 float64 `json:"costSavings"`
}

// Fairness flags.
const (
	FairnessClear  = "clear"
	FairnessReview = "review"
)

// FairnessResult is the structural safeguard verdict for a selection.
type FairnessResult struct {
	Flag   string `json:"flag"`
	Reason string `json:"reason,omitempty"`
}

// FeedbackSignal estimates how the customer will respond to the offer.
type FeedbackSignal struct {
	PredictedAcceptance     float64 `json:"predictedAcceptance"`
	HistoricalEffectiveness float64 `json:"historicalEffectiveness"`
}

// Intervention is the final pipeline output: exactly one primary offer,
// at most one fallback, created fresh per request and never persisted
// except as an audit-log entry.
type Intervention struct {
	CustomerID string        `json:"customerId"`
	Primary    Offer         `json:"primary"`
	Fallback   *Offer        `json:"fallback,omitempty"`
	Category   OfferCategory `json:"category"`
	RuleName   string        `json:"ruleName"` // cascade rule that selected the category

	GovernanceVerdict string `json:"governanceVerdict"`

	Channel string `json:"channel"`
	Timing  string `json:"timing"`
	Message string `json:"message"`

	Impact   ImpactEstimate `json:"impact"`
	Fairness FairnessResult `json:"fairness"`
	Feedback FeedbackSignal `json:"feedback"`

	// Status is never empty: "ok", "degraded" or "fallback".
	Status string `json:"status"`
}

// AuditEntry is the append-only record of one selection.
type AuditEntry struct {
	ID                string        `json:"id"`
	Timestamp         time.Time     `json:"timestamp"`
	CustomerID        string        `json:"customerId"`
	FusionScore       int           `json:"fusionScore"`
	OfferID           string        `json:"offerId"`
	Category          OfferCategory `json:"category"`
	GovernanceVerdict string        `json:"governanceVerdict"`
	FallbackID        string        `json:"fallbackId,omitempty"`
	FairnessFlag      string        `json:"fairnessFlag"`
}
