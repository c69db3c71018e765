// Package storage persists session progress as the orchestrator reports it.
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/internal/agents"
	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/internal/storage/sqlite"
	"github.com/dyike/CortexAgents/models"
)

type recordKind int

const (
	recordStage recordKind = iota + 1
	recordMessage
	recordEnd
	recordSync
)

type recordEvent struct {
	kind    recordKind
	session string
	stage   string
	msg     models.MessageRecord
	synced  chan struct{}
}

// Recorder writes stage transitions and transcript messages to the store on
// a single goroutine, so messages of a session keep their emission order.
type Recorder struct {
	store *sqlite.Store

	events chan recordEvent
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	// next message seq per live session, owned by loop
	seq map[string]int
}

func NewRecorder(store *sqlite.Store) *Recorder {
	r := &Recorder{
		store:  store,
		events: make(chan recordEvent, 512),
		done:   make(chan struct{}),
		seq:    make(map[string]int),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	ctx := context.Background()
	for {
		var ev recordEvent
		select {
		case <-r.done:
			return
		case ev = <-r.events:
		}

		switch ev.kind {
		case recordStage:
			if err := r.store.UpdateStage(ctx, ev.session, ev.stage); err != nil {
				logger.L().Warn().Err(err).Str("session_id", ev.session).Msg("record stage")
			}
		case recordMessage:
			ev.msg.Seq = r.nextSeq(ctx, ev.session)
			if err := r.store.InsertMessage(ctx, ev.msg); err != nil {
				logger.L().Warn().Err(err).Str("session_id", ev.session).Msg("record message")
			}
		case recordEnd:
			delete(r.seq, ev.session)
		case recordSync:
			close(ev.synced)
		}
	}
}

// nextSeq continues after the stored messages the first time a session is
// seen, so a session that runs again never reuses a seq.
func (r *Recorder) nextSeq(ctx context.Context, session string) int {
	last, ok := r.seq[session]
	if !ok {
		var err error
		if last, err = r.store.LastMessageSeq(ctx, session); err != nil {
			logger.L().Warn().Err(err).Str("session_id", session).Msg("load message seq")
		}
	}
	r.seq[session] = last + 1
	return last + 1
}

func (r *Recorder) enqueue(ev recordEvent) {
	select {
	case <-r.done:
	case r.events <- ev:
	}
}

func (r *Recorder) message(s *models.Session, stage, agent, role, content string, degraded bool) {
	r.enqueue(recordEvent{
		kind:    recordMessage,
		session: s.ID,
		msg: models.MessageRecord{
			ID:        uuid.NewString(),
			SessionID: s.ID,
			Stage:     stage,
			Agent:     agent,
			Role:      role,
			Content:   content,
			Degraded:  degraded,
		},
	})
}

func (r *Recorder) StageStarted(_ context.Context, s *models.Session, stage string) {
	r.enqueue(recordEvent{kind: recordStage, session: s.ID, stage: stage})
}

// StageFinished records the stage's synthesis: the verdict, the risk
// assessment or the decision. A failed stage or the trader's decision ends
// the session's transcript.
func (r *Recorder) StageFinished(_ context.Context, s *models.Session, stage string, err error) {
	if err != nil {
		r.enqueue(recordEvent{kind: recordEnd, session: s.ID})
		return
	}
	if stage == consts.StageTrader {
		defer r.enqueue(recordEvent{kind: recordEnd, session: s.ID})
	}
	switch stage {
	case consts.StageDebate:
		if v := s.Verdict; v != nil {
			r.message(s, stage, consts.ResearchManager, "verdict", stanceText(v.Stance, v.Confidence, v.Rationale), false)
		}
	case consts.StageRisk:
		if a := s.RiskAssessment; a != nil {
			r.message(s, stage, consts.RiskJudge, "assessment", stanceText(a.Stance, a.Confidence, a.Rationale), false)
		}
	case consts.StageTrader:
		if d := s.Decision; d != nil {
			r.message(s, stage, consts.Trader, "decision", stanceText(d.Action, d.Confidence, d.Rationale), false)
		}
	}
}

func (r *Recorder) ReportAdded(_ context.Context, s *models.Session, report models.AnalystReport) {
	content := report.Findings
	if report.Degraded && report.Note != "" {
		content += "\n\n(" + report.Note + ")"
	}
	r.message(s, consts.StageAnalyst, report.Agent, string(report.Kind), content, report.Degraded)
}

func (r *Recorder) Spoke(_ context.Context, s *models.Session, stage string, u models.Utterance) {
	r.message(s, stage, u.Role.Label(), string(u.Role), u.Content, false)
}

// Sync blocks until every event queued so far has been written.
func (r *Recorder) Sync() {
	ch := make(chan struct{})
	select {
	case <-r.done:
		return
	case r.events <- recordEvent{kind: recordSync, synced: ch}:
	}
	select {
	case <-r.done:
	case <-ch:
	}
}

// Close flushes pending events and stops the writer. Later events are dropped.
func (r *Recorder) Close() {
	r.Sync()
	r.once.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

func stanceText(action models.Action, confidence float64, rationale string) string {
	return fmt.Sprintf("%s (confidence %s)\n\n%s", action, agents.FormatConfidence(confidence), rationale)
}
