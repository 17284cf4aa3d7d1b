package ensemble

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Fusion weights. Financial signal is the most reliable; behavioral and
// velocity carry equal lower weight. Fixed; changing them is a
// recalibration event, not a tuning knob.
const (
	weightFinancial  = 0.50
	weightBehavioral = 0.25
	weightVelocity   = 0.25
)

const (
	confidenceFloor   = 0.60
	confidenceOverride = 0.90
	loudAgentThreshold = 85
)

// Engine fuses the three agent scores into one RiskAssessment.
// Constructed once at startup and shared; Predict is pure and safe for
// concurrent use.
type Engine struct {
	provider ModelProvider
	log      *slog.Logger
	degraded bool
}

// New builds the engine. A nil provider switches the engine into
// degraded mode permanently; this is logged once here, not per request.
func New(provider ModelProvider, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{provider: provider, log: log}
	if provider == nil {
		e.degraded = true
		log.Warn("risk ensemble starting degraded", "reason", "no model provider")
	} else {
		log.Info("risk ensemble ready", "provider", provider.Name())
	}
	return e
}

// Predict scores one feature vector. It never fails: provider errors
// fall through to the deterministic degraded path.
func (e *Engine) Predict(v *domain.FeatureVector) *domain.RiskAssessment {
	if e.degraded {
		return e.degradedAssessment(v)
	}

	results, err := e.provider.Score(v)
	if err != nil {
		e.log.Warn("model provider failed, falling back", "customer_id", v.CustomerID, "error", err)
		return e.degradedAssessment(v)
	}

	return fuse(v, results, false)
}

func fuse(v *domain.FeatureVector, results map[domain.AgentDomain]AgentResult, degraded bool) *domain.RiskAssessment {
	fin := results[domain.DomainFinancial]
	beh := results[domain.DomainBehavioral]
	vel := results[domain.DomainVelocity]

	raw := weightFinancial*float64(fin.Score) +
		weightBehavioral*float64(beh.Score) +
		weightVelocity*float64(vel.Score)
	fused := clampFusion(int(math.Round(raw)))

	a := &domain.RiskAssessment{
		FusionScore: fused,
		Level:       domain.LevelForScore(fused),
		Confidence:  confidence(fin.Score, beh.Score, vel.Score),
		AgentScores: map[domain.AgentDomain]int{
			domain.DomainFinancial:  fin.Score,
			domain.DomainBehavioral: beh.Score,
			domain.DomainVelocity:   vel.Score,
		},
		Reasons: map[domain.AgentDomain][]string{
			domain.DomainFinancial:  fin.Reasons,
			domain.DomainBehavioral: beh.Reasons,
			domain.DomainVelocity:   vel.Reasons,
		},
		LeadDomain: leadDomain(fin.Score, beh.Score, vel.Score),
		Degraded:   degraded,
	}
	a.Attributions = attributions(v)
	return a
}

// degradedAssessment produces a reproducible pseudo-score when no model
// provider is usable. Same customer, same records, same output.
func (e *Engine) degradedAssessment(v *domain.FeatureVector) *domain.RiskAssessment {
	rng := rand.New(rand.NewSource(domain.Seed("ensemble", v.CustomerID)))

	results := map[domain.AgentDomain]AgentResult{}
	for _, d := range []domain.AgentDomain{domain.DomainFinancial, domain.DomainBehavioral, domain.DomainVelocity} {
		results[d] = AgentResult{
			Score:   clampAgent(25 + rng.Intn(50)),
			Reasons: []string{"model unavailable; deterministic fallback score"},
		}
	}

	a := fuse(v, results, true)
	a.Confidence = confidenceFloor
	return a
}

func clampFusion(score int) int {
	if score < 1 {
		return 1
	}
	if score > 99 {
		return 99
	}
	return score
}

// confidence measures agreement between the agents. Lower spread means
// higher confidence, with one override: a single loud agent floors
// confidence high so that disagreement from quieter signals cannot
// dilute it.
func confidence(scores ...int) float64 {
	var sum float64
	for _, s := range scores {
		sum += float64(s)
	}
	mean := sum / float64(len(scores))

	var variance float64
	loud := false
	for _, s := range scores {
		variance += (float64(s) - mean) * (float64(s) - mean)
		if s >= loudAgentThreshold {
			loud = true
		}
	}
	std := math.Sqrt(variance / float64(len(scores)))

	conf := math.Max(confidenceFloor, 1-std/50)
	if loud && conf < confidenceOverride {
		conf = confidenceOverride
	}
	return math.Min(1, conf)
}

// leadDomain returns the highest-scoring agent. Ties break in fixed
// order so the outcome is stable: financial, then behavioral, then
// velocity.
func leadDomain(fin, beh, vel int) domain.AgentDomain {
	lead := domain.DomainFinancial
	best := fin
	if beh > best {
		lead, best = domain.DomainBehavioral, beh
	}
	if vel > best {
		lead = domain.DomainVelocity
	}
	return lead
}
