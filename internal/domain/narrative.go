package domain

import "context"

// NarrativeInput is the risk context handed to a narrative generator.
type NarrativeInput struct {
	CustomerName string
	Score        int
	Level        RiskLevel
	TopFactors   []string
	Offer        Offer
	Channel      string
}

// NarrativeGenerator produces outreach copy for an intervention.
// An external text-generation service may implement this; the pipeline
// must work correctly with that collaborator entirely absent, falling
// back to deterministic templated copy.
type NarrativeGenerator interface {
	Outreach(ctx context.Context, in NarrativeInput) (string, error)
}
