// Package narrative produces outreach copy for interventions. The
// template generator is the deterministic default; an external
// text-generation service can replace it behind the same interface.
package narrative

import (
	"context"
	"fmt"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Template renders deterministic outreach copy from the risk context.
// Used directly as the fallback whenever no richer generator is wired.
func Template(in domain.NarrativeInput) string {
	name := in.CustomerName
	if name == "" {
		name = "there"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s, our review places your account at %s risk (score %d).", name, in.Level, in.Score)

	if len(in.TopFactors) > 0 {
		fmt.Fprintf(&b, " Main factors: %s.", strings.Join(in.TopFactors, ", "))
	}

	fmt.Fprintf(&b, " We recommend: %s.", in.Offer.Name)

	switch in.Channel {
	case "rm_call":
		b.WriteString(" Your relationship manager will call you shortly.")
	case "direct_message":
		b.WriteString(" Reply to this message to get started.")
	default:
		b.WriteString(" Open the app to review this offer.")
	}

	return b.String()
}

// TemplateGenerator is the in-process NarrativeGenerator.
type TemplateGenerator struct{}

func NewTemplateGenerator() *TemplateGenerator { return &TemplateGenerator{} }

func (g *TemplateGenerator) Outreach(_ context.Context, in domain.NarrativeInput) (string, error) {
	return Template(in), nil
}
