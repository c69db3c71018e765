package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/CortexAgents/internal/service"
	"github.com/dyike/CortexAgents/models"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(0, 2).
		Width(80)

	stageStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B")).
		Bold(true)

	labelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#3B82F6")).
		Bold(true)

	mutedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))

	completedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B"))

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)
)

var actionStyles = map[models.Action]lipgloss.Style{
	models.ActionBuy:  lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true),
	models.ActionSell: lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true),
	models.ActionHold: lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true),
}

// DisplayWelcomeBanner shows the welcome banner
func DisplayWelcomeBanner(w io.Writer) {
	fmt.Fprintln(w, titleStyle.Render("CortexAgents "+Version))
	fmt.Fprintln(w, mutedStyle.Render("Analysts → bull/bear debate → risk review → trader"))
	fmt.Fprintln(w)
}

func DisplayError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("✗ "+err.Error()))
}

func DisplayInfo(w io.Writer, message string) {
	fmt.Fprintln(w, labelStyle.Render("• "+message))
}

func DisplaySuccess(w io.Writer, message string) {
	fmt.Fprintln(w, completedStyle.Render("✓ "+message))
}

func actionText(a models.Action) string {
	if st, ok := actionStyles[a]; ok {
		return st.Render(string(a))
	}
	return string(a)
}

func stanceLine(a models.Action, confidence float64) string {
	return fmt.Sprintf("%s %s", actionText(a), mutedStyle.Render(fmt.Sprintf("(confidence %.0f%%)", confidence*100)))
}

// DisplayResult renders the outcome of one analysis.
func DisplayResult(w io.Writer, res *service.Result) {
	if res == nil {
		return
	}
	var b strings.Builder
	if d := res.Decision; d != nil {
		fmt.Fprintf(&b, "%s  %s %s\n\n", titleStyle.Render("Decision"), d.Symbol, d.TradeDate)
		fmt.Fprintf(&b, "Action:      %s\n", stanceLine(d.Action, d.Confidence))
		fmt.Fprintf(&b, "Research:    %s\n", stanceLine(d.Verdict.Stance, d.Verdict.Confidence))
		fmt.Fprintf(&b, "Risk:        %s\n", stanceLine(d.Risk.Stance, d.Risk.Confidence))
		if len(d.Memories) > 0 {
			fmt.Fprintf(&b, "Lessons:     %d recalled\n", len(d.Memories))
		}
		for _, r := range d.Reports {
			if r.Degraded {
				fmt.Fprintf(&b, "%s\n", warnStyle.Render("Degraded:    "+r.Title()))
			}
		}
	} else {
		fmt.Fprintf(&b, "%s\n\n", errorStyle.Render("No decision"))
		fmt.Fprintf(&b, "Failed at:   %s\n", res.FailedAt)
		fmt.Fprintf(&b, "Error:       %s\n", res.Error)
	}
	fmt.Fprintf(&b, "Session:     %s", res.SessionID)
	if res.ReportPath != "" {
		fmt.Fprintf(&b, "\nReport:      %s", res.ReportPath)
	}
	fmt.Fprintln(w, panelStyle.Render(b.String()))
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
