package graph

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/internal/metrics"
	"github.com/dyike/CortexAgents/models"
)

func (o *Orchestrator) analystNode(ctx context.Context, s *models.Session) (*models.Session, error) {
	if err := o.runAnalysts(stageContext(ctx), s); err != nil {
		return s, err
	}
	return s, nil
}

// runAnalysts runs every registered analyst whose kind has no report yet.
// Failures never abort the stage: they become degraded placeholders.
func (o *Orchestrator) runAnalysts(ctx context.Context, s *models.Session) error {
	subject := agents.Subject{
		SessionID:    s.ID,
		Symbol:       s.Symbol,
		TradeDate:    s.TradeDate,
		IsCrypto:     s.IsCrypto,
		LookbackDays: o.opts.LookbackDays,
	}

	var g errgroup.Group
	if o.opts.AnalystConcurrency > 0 {
		g.SetLimit(o.opts.AnalystConcurrency)
	}
	for _, a := range o.team.Analysts {
		if s.HasReport(a.Kind()) {
			continue
		}
		g.Go(func() error {
			// analysts queued behind the limit do not start once the run is cancelled
			if err := ctx.Err(); err != nil {
				return err
			}
			report := o.produce(ctx, a, subject)
			if s.AddReport(report) {
				if report.Degraded {
					metrics.DegradedReportsTotal.WithLabelValues(string(report.Kind)).Inc()
				}
				o.observer.ReportAdded(ctx, s, report)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &StageError{Stage: consts.StageAnalyst, Cause: err}
	}

	for _, a := range o.team.Analysts {
		if !s.HasReport(a.Kind()) {
			return protocolErrorf(consts.StageAnalyst, "no %s report after analyst stage", a.Kind())
		}
	}
	return nil
}

func (o *Orchestrator) produce(ctx context.Context, a agents.Analyst, subject agents.Subject) models.AnalystReport {
	if o.opts.AnalystTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.AnalystTimeout)
		defer cancel()
	}

	report, err := a.Produce(ctx, subject)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("agent", a.Name()).Msg("analyst failed, using degraded placeholder")
		return models.AnalystReport{
			Kind:        a.Kind(),
			Agent:       a.Name(),
			Findings:    fmt.Sprintf("The %s analysis is unavailable for %s on %s.", a.Kind(), subject.Symbol, subject.Date()),
			GeneratedAt: o.now(),
			Degraded:    true,
			Note:        fmt.Sprintf("inference failed: %v", err),
		}
	}
	report.Kind = a.Kind()
	if report.Agent == "" {
		report.Agent = a.Name()
	}
	return report
}
