// Package pipeline orchestrates the four-stage assessment flow:
// feature derivation, ensemble prediction, context resolution and
// intervention selection.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ensemble"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/intervention"
	"github.com/opensource-finance/kestrel/internal/resolver"
)

var tracer = otel.Tracer("kestrel-pipeline")

// Result is one complete pipeline run for one customer.
type Result struct {
	CustomerID   string                  `json:"customerId"`
	Features     *domain.FeatureVector   `json:"features"`
	Assessment   *domain.RiskAssessment  `json:"assessment"`
	Context      *domain.DecisionContext `json:"context"`
	Intervention *domain.Intervention    `json:"intervention"`
}

// Pipeline wires the four stages together. Each run is independent;
// the only shared resources are the read-only store and the audit sink.
type Pipeline struct {
	store    domain.RecordStore
	deriver  *features.Deriver
	engine   *ensemble.Engine
	resolver *resolver.Resolver
	selector *intervention.Selector
	bus      domain.EventBus
	log      *slog.Logger

	batchLimit int
	workers    int
}

// Config bounds batch enrichment. Zero values fall back to the
// defaults from domain.DefaultConfig.
type Config struct {
	BatchEnrichLimit int
	Workers          int
}

func New(
	store domain.RecordStore,
	deriver *features.Deriver,
	engine *ensemble.Engine,
	res *resolver.Resolver,
	selector *intervention.Selector,
	bus domain.EventBus,
	cfg Config,
	log *slog.Logger,
) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if cfg.BatchEnrichLimit <= 0 {
		cfg.BatchEnrichLimit = 50
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &Pipeline{
		store:      store,
		deriver:    deriver,
		engine:     engine,
		resolver:   res,
		selector:   selector,
		bus:        bus,
		log:        log,
		batchLimit: cfg.BatchEnrichLimit,
		workers:    cfg.Workers,
	}
}

// Run executes the full assessment for one customer. The only
// distinguishable failure is domain.ErrNotFound; every other condition
// resolves to a usable result.
func (p *Pipeline) Run(ctx context.Context, customerID string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("customer_id", customerID)))
	defer span.End()

	v, err := p.deriveStage(ctx, customerID)
	if err != nil {
		return nil, err
	}

	assessment := p.predictStage(ctx, v)
	dctx := p.resolveStage(ctx, customerID, v)
	iv := p.selectStage(ctx, v, assessment, dctx)

	result := &Result{
		CustomerID:   customerID,
		Features:     v,
		Assessment:   assessment,
		Context:      dctx,
		Intervention: iv,
	}

	span.SetAttributes(
		attribute.Int("fusion_score", assessment.FusionScore),
		attribute.String("level", string(assessment.Level)),
		attribute.String("case_type", string(dctx.CaseType)),
		attribute.String("offer_id", iv.Primary.ID),
	)

	p.publish(ctx, result)
	return result, nil
}

func (p *Pipeline) deriveStage(ctx context.Context, customerID string) (*domain.FeatureVector, error) {
	ctx, span := tracer.Start(ctx, "pipeline.derive")
	defer span.End()
	return p.deriver.Derive(ctx, customerID)
}

func (p *Pipeline) predictStage(ctx context.Context, v *domain.FeatureVector) *domain.RiskAssessment {
	_, span := tracer.Start(ctx, "pipeline.predict")
	defer span.End()
	return p.engine.Predict(v)
}

func (p *Pipeline) resolveStage(ctx context.Context, customerID string, v *domain.FeatureVector) *domain.DecisionContext {
	_, span := tracer.Start(ctx, "pipeline.resolve")
	defer span.End()

	// Persisted ability/willingness values win; the profile read that
	// carries them may fail without blocking the run.
	profile, err := p.store.GetProfile(ctx, customerID)
	if err != nil {
		profile = nil
	}
	return p.resolver.Resolve(profile, v)
}

func (p *Pipeline) selectStage(ctx context.Context, v *domain.FeatureVector, a *domain.RiskAssessment, dctx *domain.DecisionContext) *domain.Intervention {
	ctx, span := tracer.Start(ctx, "pipeline.select")
	defer span.End()
	return p.selector.Select(ctx, v, a, dctx)
}

// publish announces the completed assessment, and raises a risk alert
// for critical or rare-case outcomes. Publish failures are logged and
// swallowed.
func (p *Pipeline) publish(ctx context.Context, r *Result) {
	if p.bus == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"customer_id": r.CustomerID,
		"score":       r.Assessment.FusionScore,
		"level":       r.Assessment.Level,
		"case_type":   r.Context.CaseType,
		"offer_id":    r.Intervention.Primary.ID,
	})
	if err != nil {
		return
	}

	if err := p.bus.Publish(ctx, domain.TopicAssessmentCompleted, payload); err != nil {
		p.log.Warn("assessment publish failed", "customer_id", r.CustomerID, "error", err)
	}

	if r.Assessment.Level == domain.LevelCritical || r.Context.RareCaseDetected {
		if err := p.bus.Publish(ctx, domain.TopicRiskAlert, payload); err != nil {
			p.log.Warn("risk alert publish failed", "customer_id", r.CustomerID, "error", err)
		}
	}
}
