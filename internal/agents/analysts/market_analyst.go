package analysts

import (
	"context"
	"fmt"
	"time"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/dataflows"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/models"
)

// MarketAnalyst covers price action and technical indicators.
type MarketAnalyst struct {
	analyst
	prices dataflows.Provider
}

func NewMarketAnalyst(c llm.Completer, prices dataflows.Provider) *MarketAnalyst {
	return &MarketAnalyst{
		analyst: analyst{
			kind:   models.KindTechnical,
			name:   consts.MarketAnalyst,
			prompt: "analysts/market_analyst",
			llm:    c,
			now:    time.Now,
		},
		prices: prices,
	}
}

func (m *MarketAnalyst) Produce(ctx context.Context, subject agents.Subject) (models.AnalystReport, error) {
	bars, err := m.prices.Fetch(ctx, subject.Symbol, subject.Range())
	if err != nil {
		return m.write(ctx, subject, "", err)
	}
	data := fmt.Sprintf("Daily bars (most recent 30 of %d, source %s):\n%s\nIndicators on the full window:\n%s",
		len(bars), bars[len(bars)-1].Source, dataflows.FormatBars(bars, 30), dataflows.ComputeIndicators(bars))
	return m.write(ctx, subject, data, nil)
}
