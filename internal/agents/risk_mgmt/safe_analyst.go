package risk_mgmt

import (
	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/models"
)

// NewSafeAnalyst argues for capital preservation.
func NewSafeAnalyst(c llm.Completer) *RiskDebater {
	return &RiskDebater{role: models.RoleConservative, name: consts.SafeAnalyst, prompt: "risk_mgmt/safe_analyst", llm: c}
}
