package researchers

import (
	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/models"
)

func NewBearResearcher(c llm.Completer) *Researcher {
	return &Researcher{
		role:     models.RoleBear,
		opponent: models.RoleBull,
		name:     consts.BearResearcher,
		prompt:   "researchers/bear_researcher",
		llm:      c,
	}
}
