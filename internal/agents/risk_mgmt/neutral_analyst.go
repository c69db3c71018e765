package risk_mgmt

import (
	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/models"
)

func NewNeutralAnalyst(c llm.Completer) *RiskDebater {
	return &RiskDebater{role: models.RoleNeutral, name: consts.NeutralAnalyst, prompt: "risk_mgmt/neutral_analyst", llm: c}
}
