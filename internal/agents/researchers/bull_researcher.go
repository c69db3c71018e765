package researchers

import (
	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/models"
)

func NewBullResearcher(c llm.Completer) *Researcher {
	return &Researcher{
		role:     models.RoleBull,
		opponent: models.RoleBear,
		name:     consts.BullResearcher,
		prompt:   "researchers/bull_researcher",
		llm:      c,
	}
}
