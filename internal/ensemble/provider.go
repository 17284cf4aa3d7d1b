// Package ensemble fuses three specialized risk agents into one
// calibrated assessment with confidence and reason codes.
package ensemble

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// AgentResult is one agent's bounded score plus the reason codes for
// every threshold it actually crossed.
type AgentResult struct {
	Score   int
	Reasons []string
}

// ModelProvider produces per-domain agent results for a feature vector.
// Exactly one provider is constructed at startup; if construction
// fails, the engine runs in degraded mode instead of chaining
// speculative load attempts.
type ModelProvider interface {
	Name() string
	Score(v *domain.FeatureVector) (map[domain.AgentDomain]AgentResult, error)
}

// HeuristicProvider scores with fixed threshold rules over the named
// signals. It is the in-process default and has no load failure mode.
type HeuristicProvider struct{}

func NewHeuristicProvider() *HeuristicProvider { return &HeuristicProvider{} }

func (p *HeuristicProvider) Name() string { return "heuristic-v2" }

func (p *HeuristicProvider) Score(v *domain.FeatureVector) (map[domain.AgentDomain]AgentResult, error) {
	if v == nil {
		return nil, fmt.Errorf("score: %w: nil feature vector", domain.ErrInvalidInput)
	}
	return map[domain.AgentDomain]AgentResult{
		domain.DomainFinancial:  financialAgent(v),
		domain.DomainBehavioral: behavioralAgent(v),
		domain.DomainVelocity:   velocityAgent(v),
	}, nil
}
