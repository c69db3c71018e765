package risk_mgmt

import (
	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/models"
)

// NewRiskyAnalyst champions high-reward opportunities.
func NewRiskyAnalyst(c llm.Completer) *RiskDebater {
	return &RiskDebater{role: models.RoleAggressive, name: consts.RiskyAnalyst, prompt: "risk_mgmt/risky_analyst", llm: c}
}
