package cli

import (
	"context"
	"errors"
	"io"

	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/dyike/CortexAgents/pkg/app"
)

// InteractiveSession handles interactive CLI sessions
type InteractiveSession struct {
	rt  *app.Runtime
	out io.Writer
}

func NewInteractiveSession(rt *app.Runtime, out io.Writer) *InteractiveSession {
	return &InteractiveSession{rt: rt, out: out}
}

// Start loops prompt → analyze → next action until the user exits or
// interrupts a prompt.
func (s *InteractiveSession) Start(ctx context.Context) error {
	DisplayWelcomeBanner(s.out)

	next := actionAnalyze
	for {
		switch next {
		case actionAnalyze:
			if err := s.analyzeOnce(ctx); err != nil {
				if errors.Is(err, terminal.InterruptErr) {
					return nil
				}
				DisplayError(s.out, err)
			}
		case actionHistory:
			if _, err := NewResultsManager(s.rt.Service(), s.out).ListSessions(ctx, 0, 10); err != nil {
				DisplayError(s.out, err)
			}
		default:
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		choice, err := PromptForNextAction()
		if err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				return nil
			}
			return err
		}
		next = choice
	}
}

func (s *InteractiveSession) analyzeOnce(ctx context.Context) error {
	symbol, err := PromptForTicker()
	if err != nil {
		return err
	}
	date, err := PromptForAnalysisDate()
	if err != nil {
		return err
	}
	return runAnalysis(ctx, s.rt, s.out, symbol, date)
}
