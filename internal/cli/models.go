package cli

import (
	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/models"
)

// AgentStatus represents the status of an agent
type AgentStatus string

const (
	StatusPending    AgentStatus = "pending"
	StatusInProgress AgentStatus = "in_progress"
	StatusCompleted  AgentStatus = "completed"
	StatusError      AgentStatus = "error"
)

type team struct {
	Name   string
	Stage  string
	Agents []string
}

// roster lists the teams in pipeline order.
var roster = []team{
	{Name: "Analyst Team", Stage: consts.StageAnalyst, Agents: []string{
		consts.Agent_MarketAnalyst,
		consts.Agent_SocialAnalyst,
		consts.Agent_NewsAnalyst,
		consts.Agent_FundamentalsAnalyst,
	}},
	{Name: "Research Team", Stage: consts.StageDebate, Agents: []string{
		consts.Agent_BullResearcher,
		consts.Agent_BearResearcher,
		consts.Agent_ResearchManager,
	}},
	{Name: "Risk Management", Stage: consts.StageRisk, Agents: []string{
		consts.Agent_RiskyAnalyst,
		consts.Agent_SafeAnalyst,
		consts.Agent_NeutralAnalyst,
		consts.Agent_RiskJudge,
	}},
	{Name: "Trading Team", Stage: consts.StageTrader, Agents: []string{
		consts.Agent_Trader,
	}},
}

func stageAgents(stage string) []string {
	for _, t := range roster {
		if t.Stage == stage {
			return t.Agents
		}
	}
	return nil
}

func totalAgents() int {
	n := 0
	for _, t := range roster {
		n += len(t.Agents)
	}
	return n
}

var kindAgents = map[models.AnalystKind]string{
	models.KindTechnical:   consts.Agent_MarketAnalyst,
	models.KindFundamental: consts.Agent_FundamentalsAnalyst,
	models.KindSentiment:   consts.Agent_SocialAnalyst,
	models.KindNews:        consts.Agent_NewsAnalyst,
}
