package intervention

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Input is the flattened decision state the cascade evaluates over.
type Input struct {
	Score            int
	Ability          int
	Willingness      int
	CaseType         domain.CaseType
	Lead             domain.AgentDomain
	DistressElevated bool
	AutoDebitFails   int
}

func (in Input) activation() map[string]any {
	return map[string]any{
		"score":             in.Score,
		"ability":           in.Ability,
		"willingness":       in.Willingness,
		"case_type":         string(in.CaseType),
		"lead":              string(in.Lead),
		"distress_elevated": in.DistressElevated,
	}
}

// cascadeRule is one (predicate, category, candidate-priority) entry.
// Predicates are CEL expressions compiled once at construction; decide
// picks the category and ordered candidate ids for the matched input.
type cascadeRule struct {
	name   string
	expr   string
	decide func(in Input) (domain.OfferCategory, []string)
}

type compiledRule struct {
	cascadeRule
	program cel.Program
}

// cascadeRules is the full priority cascade, first match wins. The
// final rule's predicate is constant true so evaluation always lands.
func cascadeRules() []cascadeRule {
	return []cascadeRule{
		{
			// Extreme risk overrides cooperative context.
			name: "extreme-risk-control",
			expr: "score >= 90",
			decide: func(Input) (domain.OfferCategory, []string) {
				return domain.CategoryGovernance, []string{ManualReviewOfferID, "OFF-LIMIT-FREEZE", "OFF-RECOVERY-CALL"}
			},
		},
		{
			name: "strategic-defaulter-control",
			expr: "case_type == 'StrategicDefaulter'",
			decide: func(in Input) (domain.OfferCategory, []string) {
				if in.Score >= 70 {
					return domain.CategoryGovernance, []string{"OFF-LIMIT-FREEZE", "OFF-RECOVERY-CALL", ManualReviewOfferID}
				}
				return domain.CategoryGovernance, []string{"OFF-RECOVERY-CALL", ManualReviewOfferID}
			},
		},
		{
			name: "victim-liquidity-relief",
			expr: "case_type == 'VictimOfCircumstance'",
			decide: func(in Input) (domain.OfferCategory, []string) {
				if in.Score >= 60 {
					return domain.CategoryLiquidityRelief, []string{"OFF-SAL-ADV", "OFF-FEE-WAIVER", "OFF-OD-LIMIT"}
				}
				return domain.CategoryLiquidityRelief, []string{"OFF-SAL-ADV", "OFF-OD-LIMIT", "OFF-FEE-WAIVER"}
			},
		},
		{
			name: "behavioral-correction",
			expr: "ability > 60 && willingness < 40",
			decide: func(in Input) (domain.OfferCategory, []string) {
				if in.DistressElevated {
					return domain.CategoryBehavioralCorrection, []string{"OFF-MERCHANT-BLOCK", "OFF-SPEND-COACH"}
				}
				return domain.CategoryBehavioralCorrection, []string{"OFF-SPEND-COACH", "OFF-WELLNESS"}
			},
		},
		{
			name: "restructuring-relief",
			expr: "ability < 40 && willingness > 60",
			decide: func(in Input) (domain.OfferCategory, []string) {
				if in.Score >= 70 {
					return domain.CategoryRestructuring, []string{"OFF-HOLIDAY-3M", "OFF-TENURE-EXT", "OFF-RATE-REDUCE"}
				}
				return domain.CategoryRestructuring, []string{"OFF-RATE-REDUCE", "OFF-TENURE-EXT", "OFF-HOLIDAY-3M"}
			},
		},
		{
			name: "proactive-positive",
			expr: "score < 50 && ability > 50",
			decide: func(Input) (domain.OfferCategory, []string) {
				return domain.CategoryProactivePositive, []string{"OFF-SMART-SAVER", "OFF-LOYALTY", "OFF-STD"}
			},
		},
		{
			// Route by whichever agent shouted loudest.
			name: "lead-domain-routing",
			expr: "lead in ['financial', 'behavioral', 'velocity']",
			decide: func(in Input) (domain.OfferCategory, []string) {
				switch in.Lead {
				case domain.DomainBehavioral:
					return domain.CategoryBehavioralCorrection, []string{"OFF-SPEND-COACH", "OFF-MERCHANT-BLOCK", "OFF-WELLNESS"}
				case domain.DomainVelocity:
					return domain.CategoryLiquidityRelief, []string{"OFF-FEE-WAIVER", "OFF-SAL-ADV", "OFF-OD-LIMIT"}
				default:
					return domain.CategoryRestructuring, []string{"OFF-TENURE-EXT", "OFF-RATE-REDUCE", "OFF-HOLIDAY-3M"}
				}
			},
		},
		{
			name: "default-posture",
			expr: "true",
			decide: func(in Input) (domain.OfferCategory, []string) {
				if in.Score >= 60 {
					return domain.CategoryRestructuring, []string{"OFF-TENURE-EXT", "OFF-RATE-REDUCE"}
				}
				return domain.CategoryProactivePositive, []string{"OFF-STD", "OFF-SMART-SAVER"}
			},
		},
	}
}

// compileCascade builds the CEL environment and compiles every rule
// predicate. Done once at selector construction.
func compileCascade() ([]*compiledRule, error) {
	env, err := cel.NewEnv(
		cel.Variable("score", cel.IntType),
		cel.Variable("ability", cel.IntType),
		cel.Variable("willingness", cel.IntType),
		cel.Variable("case_type", cel.StringType),
		cel.Variable("lead", cel.StringType),
		cel.Variable("distress_elevated", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	rules := cascadeRules()
	compiled := make([]*compiledRule, 0, len(rules))
	for _, r := range rules {
		ast, issues := env.Compile(r.expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile rule %s: %w", r.name, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program rule %s: %w", r.name, err)
		}
		compiled = append(compiled, &compiledRule{cascadeRule: r, program: prg})
	}
	return compiled, nil
}

// match evaluates one compiled predicate against the input.
func (r *compiledRule) match(activation map[string]any) (bool, error) {
	out, _, err := r.program.Eval(activation)
	if err != nil {
		return false, err
	}
	return out == types.True, nil
}
