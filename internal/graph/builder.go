package graph

import (
	"context"
	"time"

	"github.com/dyike/CortexAgents/config"
	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/agents/analysts"
	"github.com/dyike/CortexAgents/internal/agents/managers"
	"github.com/dyike/CortexAgents/internal/agents/researchers"
	"github.com/dyike/CortexAgents/internal/agents/risk_mgmt"
	"github.com/dyike/CortexAgents/internal/agents/trader"
	"github.com/dyike/CortexAgents/internal/dataflows"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/internal/memory"
	"github.com/dyike/CortexAgents/models"
)

// NewTeam wires the full trading team. Analysts and debaters run on the
// quick-think model; judgements run on the deep-think model.
func NewTeam(m *llm.Models, hub *dataflows.Hub) agents.Team {
	return agents.Team{
		Analysts: []agents.Analyst{
			analysts.NewMarketAnalyst(m.Quick, hub.Prices),
			analysts.NewFundamentalsAnalyst(m.Quick, hub.Fundamentals),
			analysts.NewSocialAnalyst(m.Quick, hub.Social),
			analysts.NewNewsAnalyst(m.Quick, hub.News),
		},
		Bull:      researchers.NewBullResearcher(m.Quick),
		Bear:      researchers.NewBearResearcher(m.Quick),
		Moderator: managers.NewResearchManager(m.Deep, m.Quick),
		RiskDebaters: map[models.Role]agents.Debater{
			models.RoleAggressive:   risk_mgmt.NewRiskyAnalyst(m.Quick),
			models.RoleConservative: risk_mgmt.NewSafeAnalyst(m.Quick),
			models.RoleNeutral:      risk_mgmt.NewNeutralAnalyst(m.Quick),
		},
		RiskJudge: managers.NewRiskManager(m.Deep),
		Trader:    trader.NewTrader(m.Deep),
	}
}

// OptionsFromConfig maps config limits onto orchestrator options.
func OptionsFromConfig(cfg config.Config) Options {
	opts := Options{
		MaxDebateRounds:      cfg.MaxDebateRounds,
		MaxRiskDiscussRounds: cfg.MaxRiskDiscussRounds,
		ConvergenceCheck:     cfg.ConvergenceCheck,
		MemoryTopK:           cfg.MemoryTopK,
		LookbackDays:         cfg.LookbackDays,
		AnalystConcurrency:   cfg.AnalystConcurrency,
	}
	if cfg.AgentTimeoutSec > 0 && cfg.RetryAttempts > 0 {
		// room for the data fetch plus every inference attempt
		opts.AnalystTimeout = time.Duration(cfg.AgentTimeoutSec*(cfg.RetryAttempts+1)) * time.Second
	}
	return opts
}

// Engine bundles what a caller needs to run and reflect on sessions.
type Engine struct {
	Orchestrator *Orchestrator
	Reflector    *Reflector
	Memory       memory.Bank
	Models       *llm.Models
}

// Build assembles an engine from cfg against the given memory store.
func Build(ctx context.Context, cfg config.Config, bank memory.Bank, options ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m, err := llm.NewModels(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return BuildWith(cfg, m, dataflows.NewHub(cfg), bank, options...)
}

// BuildWith assembles an engine from already constructed collaborators.
func BuildWith(cfg config.Config, m *llm.Models, hub *dataflows.Hub, bank memory.Bank, options ...Option) (*Engine, error) {
	if bank == nil {
		bank = memory.NewInMemoryBank(nil)
	}
	orch, err := NewOrchestrator(NewTeam(m, hub), bank, OptionsFromConfig(cfg), options...)
	if err != nil {
		return nil, err
	}
	return &Engine{
		Orchestrator: orch,
		Reflector:    NewReflector(m.Quick, bank),
		Memory:       bank,
		Models:       m,
	}, nil
}
