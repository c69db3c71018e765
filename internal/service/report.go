package service

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/utils"
	"github.com/dyike/CortexAgents/models"
)

// WriteReport renders the session as markdown under
// resultsDir/<symbol>/<date>/<session>.md.
func WriteReport(resultsDir string, s *models.Session, runErr error) (string, error) {
	dir := filepath.Join(resultsDir, s.Symbol, s.Date())
	return utils.WriteMarkdown(dir, s.ID+".md", RenderReport(s, runErr))
}

func RenderReport(s *models.Session, runErr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s trading analysis for %s\n\n", s.Symbol, s.Date())
	fmt.Fprintf(&b, "Session `%s`\n\n", s.ID)

	if d := s.Decision; d != nil {
		fmt.Fprintf(&b, "## Decision: %s (confidence %s)\n\n%s\n\n", d.Action, agents.FormatConfidence(d.Confidence), d.Rationale)
	}
	if runErr != nil {
		fmt.Fprintf(&b, "## Failed\n\n%v\n\n", runErr)
	}

	if reports := s.OrderedReports(); len(reports) > 0 {
		b.WriteString("## Analyst Reports\n\n")
		b.WriteString(agents.RenderReports(reports))
		b.WriteString("\n\n")
	}

	if len(s.Research.Utterances) > 0 {
		fmt.Fprintf(&b, "## Research Debate (%d round(s), %s)\n\n%s\n\n", s.Research.Rounds, s.Research.StopReason, s.Research.Transcript())
	}
	if v := s.Verdict; v != nil {
		fmt.Fprintf(&b, "### Research Manager: %s (confidence %s)\n\n%s\n\n", v.Stance, agents.FormatConfidence(v.Confidence), v.Rationale)
	}

	if len(s.Risk.Utterances) > 0 {
		fmt.Fprintf(&b, "## Risk Discussion (%d round(s))\n\n%s\n\n", s.Risk.Rounds, s.Risk.Transcript())
	}
	if a := s.RiskAssessment; a != nil {
		fmt.Fprintf(&b, "### Risk Judge: %s (confidence %s)\n\n%s\n\n", a.Stance, agents.FormatConfidence(a.Confidence), a.Rationale)
	}

	if len(s.Memories) > 0 {
		b.WriteString("## Lessons Consulted\n\n")
		b.WriteString(agents.FormatMemories(s.Memories))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
