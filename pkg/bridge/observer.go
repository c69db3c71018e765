package bridge

import (
	"context"
	"encoding/json"

	"github.com/dyike/CortexAgents/internal/graph"
	"github.com/dyike/CortexAgents/models"
)

// Event topics sent to the host.
const (
	TopicStageStarted  = "session.stage.started"
	TopicStageFinished = "session.stage.finished"
	TopicReport        = "session.report"
	TopicUtterance     = "session.utterance"
	TopicDecision      = "session.decision"
)

// Observer turns session progress into host events.
type Observer struct{}

var _ graph.Observer = Observer{}

type stageEvent struct {
	SessionID string `json:"session_id"`
	Symbol    string `json:"symbol"`
	Stage     string `json:"stage"`
	Error     string `json:"error,omitempty"`
}

func (Observer) StageStarted(_ context.Context, s *models.Session, stage string) {
	emit(TopicStageStarted, stageEvent{SessionID: s.ID, Symbol: s.Symbol, Stage: stage})
}

func (Observer) StageFinished(_ context.Context, s *models.Session, stage string, err error) {
	ev := stageEvent{SessionID: s.ID, Symbol: s.Symbol, Stage: stage}
	if err != nil {
		ev.Error = err.Error()
	}
	emit(TopicStageFinished, ev)
	if err == nil && s.Decision != nil {
		emit(TopicDecision, s.Decision)
	}
}

func (Observer) ReportAdded(_ context.Context, s *models.Session, report models.AnalystReport) {
	emit(TopicReport, struct {
		SessionID string `json:"session_id"`
		models.AnalystReport
	}{s.ID, report})
}

func (Observer) Spoke(_ context.Context, s *models.Session, stage string, u models.Utterance) {
	emit(TopicUtterance, struct {
		SessionID string `json:"session_id"`
		Stage     string `json:"stage"`
		models.Utterance
	}{s.ID, stage, u})
}

func emit(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	Notify(topic, string(payload))
}
