package analysts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/dataflows"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/models"
)

type NewsAnalyst struct {
	analyst
	source dataflows.NewsSource
}

func NewNewsAnalyst(c llm.Completer, source dataflows.NewsSource) *NewsAnalyst {
	return &NewsAnalyst{
		analyst: analyst{
			kind:   models.KindNews,
			name:   consts.NewsAnalyst,
			prompt: "analysts/news_analyst",
			llm:    c,
			now:    time.Now,
		},
		source: source,
	}
}

func (n *NewsAnalyst) Produce(ctx context.Context, subject agents.Subject) (models.AnalystReport, error) {
	rng := subject.Range()
	rng.Start = subject.TradeDate.AddDate(0, 0, -7)

	items, err := n.source.News(ctx, subject.Symbol, rng)
	if err != nil {
		return n.write(ctx, subject, "", err)
	}

	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "### %s (%s, %s)\n", it.Title, it.Source, it.PublishedAt.Format("2006-01-02"))
		if it.Summary != "" {
			b.WriteString(it.Summary)
			b.WriteString("\n")
		}
	}
	return n.write(ctx, subject, b.String(), nil)
}
