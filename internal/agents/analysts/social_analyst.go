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

// SocialAnalyst gauges community sentiment.
type SocialAnalyst struct {
	analyst
	source dataflows.SocialSource
}

func NewSocialAnalyst(c llm.Completer, source dataflows.SocialSource) *SocialAnalyst {
	return &SocialAnalyst{
		analyst: analyst{
			kind:   models.KindSentiment,
			name:   consts.SocialMediaAnalyst,
			prompt: "analysts/social_analyst",
			llm:    c,
			now:    time.Now,
		},
		source: source,
	}
}

func (s *SocialAnalyst) Produce(ctx context.Context, subject agents.Subject) (models.AnalystReport, error) {
	rng := subject.Range()
	// sentiment only looks back one week
	rng.Start = subject.TradeDate.AddDate(0, 0, -7)

	posts, err := s.source.Posts(ctx, subject.Symbol, rng)
	if err != nil {
		return s.write(ctx, subject, "", err)
	}

	var b strings.Builder
	for _, p := range posts {
		fmt.Fprintf(&b, "[r/%s] %s (score %d, %d comments, %s)\n", p.Community, p.Title, p.Score, p.Comments, p.CreatedAt.Format("2006-01-02"))
		if p.Body != "" {
			fmt.Fprintf(&b, "  %s\n", p.Body)
		}
	}
	return s.write(ctx, subject, b.String(), nil)
}
