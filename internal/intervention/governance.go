package intervention

import "github.com/opensource-finance/kestrel/internal/domain"

// Governance constants. Fixed policy, not tuning knobs.
const (
	// exposureScoreCap: no additional credit exposure above this score.
	exposureScoreCap = 65

	// pauseBounceCeiling: payment pauses are ineffective for customers
	// with this many bounced auto-debits or more.
	pauseBounceCeiling = 2

	// fairnessScoreFloor: Governance action below this score for a
	// non-strategic customer triggers a fairness review.
	fairnessScoreFloor = 70
)

// governanceCheck is the eligibility predicate applied to every
// candidate offer before it may be chosen. Returns the rejection
// reason, or "" when the offer passes.
func governanceCheck(offer *domain.Offer, in Input) string {
	if offer == nil {
		return "unknown offer"
	}
	if offer.IncreasesExposure && in.Score > exposureScoreCap {
		return "exposure increase blocked at current risk"
	}
	if in.Score > offer.MaxEligibleScore {
		return "score above offer eligibility cap"
	}
	if offer.PaymentPause && in.AutoDebitFails > pauseBounceCeiling {
		return "payment pause blocked by bounce history"
	}
	return ""
}

// fairness flags disproportionate punitive action: a Governance offer
// for a customer who is neither strategic nor extreme-risk.
func fairness(category domain.OfferCategory, in Input) domain.FairnessResult {
	if category == domain.CategoryGovernance &&
		in.CaseType != domain.CaseStrategicDefaulter &&
		in.Score < fairnessScoreFloor {
		return domain.FairnessResult{
			Flag:   domain.FairnessReview,
			Reason: "punitive category without strategic-defaulter context",
		}
	}
	return domain.FairnessResult{Flag: domain.FairnessClear}
}
