package graph

import (
	"context"

	"github.com/dyike/CortexAgents/models"
)

// Observer is notified as a session progresses. Implementations must not
// mutate the session; they are called on the orchestrator's goroutine
// except ReportAdded, which runs on analyst goroutines.
type Observer interface {
	StageStarted(ctx context.Context, s *models.Session, stage string)
	StageFinished(ctx context.Context, s *models.Session, stage string, err error)
	ReportAdded(ctx context.Context, s *models.Session, report models.AnalystReport)
	Spoke(ctx context.Context, s *models.Session, stage string, u models.Utterance)
}

type NopObserver struct{}

func (NopObserver) StageStarted(context.Context, *models.Session, string)              {}
func (NopObserver) StageFinished(context.Context, *models.Session, string, error)      {}
func (NopObserver) ReportAdded(context.Context, *models.Session, models.AnalystReport) {}
func (NopObserver) Spoke(context.Context, *models.Session, string, models.Utterance)   {}

// Observers fans every notification out to each non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var list multiObserver
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	if len(list) == 1 {
		return list[0]
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) StageStarted(ctx context.Context, s *models.Session, stage string) {
	for _, o := range m {
		o.StageStarted(ctx, s, stage)
	}
}

func (m multiObserver) StageFinished(ctx context.Context, s *models.Session, stage string, err error) {
	for _, o := range m {
		o.StageFinished(ctx, s, stage, err)
	}
}

func (m multiObserver) ReportAdded(ctx context.Context, s *models.Session, report models.AnalystReport) {
	for _, o := range m {
		o.ReportAdded(ctx, s, report)
	}
}

func (m multiObserver) Spoke(ctx context.Context, s *models.Session, stage string, u models.Utterance) {
	for _, o := range m {
		o.Spoke(ctx, s, stage, u)
	}
}
