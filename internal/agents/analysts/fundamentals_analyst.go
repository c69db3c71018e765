package analysts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/dataflows"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/models"
)

type FundamentalsAnalyst struct {
	analyst
	source dataflows.FundamentalsSource
}

func NewFundamentalsAnalyst(c llm.Completer, source dataflows.FundamentalsSource) *FundamentalsAnalyst {
	return &FundamentalsAnalyst{
		analyst: analyst{
			kind:   models.KindFundamental,
			name:   consts.FundamentalsAnalyst,
			prompt: "analysts/fundamentals_analyst",
			llm:    c,
			now:    time.Now,
		},
		source: source,
	}
}

func (f *FundamentalsAnalyst) Produce(ctx context.Context, subject agents.Subject) (models.AnalystReport, error) {
	fund, err := f.source.Fundamentals(ctx, subject.Symbol)
	if err != nil {
		return f.write(ctx, subject, "", err)
	}
	return f.write(ctx, subject, formatFundamentals(fund), nil)
}

func formatFundamentals(f models.Fundamentals) string {
	keys := make([]string, 0, len(f.Metrics))
	for k := range f.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s), source %s\n", f.Name, f.Symbol, f.Source)
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %g\n", k, f.Metrics[k])
	}
	for _, n := range f.Notes {
		fmt.Fprintf(&b, "Note: %s\n", n)
	}
	return b.String()
}
