package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/dyike/CortexAgents/internal/llm"
	"github.com/dyike/CortexAgents/internal/utils"
	"github.com/dyike/CortexAgents/models"
)

const noMemories = "No past memories found."

// Messages loads the named prompt template, fills vars and appends the conversation.
func Messages(ctx context.Context, promptName string, vars map[string]any, conversation []*schema.Message) ([]*schema.Message, error) {
	tpl, err := utils.LoadPrompt(promptName)
	if err != nil {
		return nil, err
	}
	return llm.Render(ctx, tpl, vars, conversation)
}

// RenderReports concatenates reports under their headings in canonical order.
func RenderReports(reports []models.AnalystReport) string {
	if len(reports) == 0 {
		return "No analyst reports available."
	}
	var b strings.Builder
	for i, r := range reports {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "### %s\n%s", r.Title(), r.Findings)
		if r.Degraded {
			fmt.Fprintf(&b, "\n(degraded: %s)", r.Note)
		}
	}
	return b.String()
}

// ReportFindings returns the findings of the report of kind, or a placeholder.
func ReportFindings(reports []models.AnalystReport, kind models.AnalystKind) string {
	for _, r := range reports {
		if r.Kind == kind {
			return r.Findings
		}
	}
	return "Not available."
}

func FormatMemories(matches []models.MemoryMatch) string {
	if len(matches) == 0 {
		return noMemories
	}
	var b strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&b, "%d. %s", i+1, m.Record.Lesson)
		if m.Record.Outcome != "" {
			fmt.Fprintf(&b, " (outcome: %s)", m.Record.Outcome)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Conversation replays the debate log from self's point of view: its own
// turns as assistant messages, everyone else's as labeled user messages. A
// closing user instruction keeps the last message on the user side.
func Conversation(log *models.DebateState, self models.Role, instruction string) []*schema.Message {
	var msgs []*schema.Message
	if log != nil {
		msgs = make([]*schema.Message, 0, len(log.Utterances)+1)
		for _, u := range log.Utterances {
			if u.Role == self {
				msgs = append(msgs, schema.AssistantMessage(u.Content, nil))
				continue
			}
			msgs = append(msgs, schema.UserMessage(u.Role.Label()+": "+u.Content))
		}
	}
	return append(msgs, schema.UserMessage(instruction))
}

// LastArgument is the latest utterance by role, or a placeholder before it has spoken.
func LastArgument(log *models.DebateState, role models.Role) string {
	if log == nil {
		return "None yet."
	}
	if u, ok := log.LastBy(role); ok {
		return u.Content
	}
	return "None yet."
}

func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.0f%%", c*100)
}

// VerdictVars exposes a research verdict to templates.
func VerdictVars(v *models.ResearchVerdict) map[string]any {
	if v == nil {
		return map[string]any{
			"verdict_stance":     "unknown",
			"verdict_confidence": "n/a",
			"verdict_rationale":  "",
		}
	}
	return map[string]any{
		"verdict_stance":     string(v.Stance),
		"verdict_confidence": FormatConfidence(v.Confidence),
		"verdict_rationale":  v.Rationale,
	}
}

// Vars merges template variable maps; later maps win.
func Vars(maps ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
