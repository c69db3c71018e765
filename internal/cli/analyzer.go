package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dyike/CortexAgents/internal/graph"
	"github.com/dyike/CortexAgents/models"
	"github.com/dyike/CortexAgents/pkg/app"
)

// runAnalysis runs one symbol with live progress and prints the decision.
// A failed run still prints what was persisted before returning the error.
func runAnalysis(ctx context.Context, rt *app.Runtime, out io.Writer, symbol, date string) error {
	DisplayInfo(out, fmt.Sprintf("Starting analysis for %s on %s", symbol, dateOrToday(date)))

	res, err := rt.Service().RunAnalysis(ctx, models.AgentInitParams{Symbol: symbol, TradeDate: date})
	if res != nil {
		fmt.Fprintln(out)
		DisplayResult(out, res)
	}
	if err != nil {
		if stage := graph.FailedStage(err); stage != "" {
			return fmt.Errorf("analysis failed in %s stage: %w", stage, err)
		}
		return fmt.Errorf("analysis failed: %w", err)
	}
	return nil
}

func dateOrToday(date string) string {
	if date == "" {
		return "today"
	}
	return date
}
