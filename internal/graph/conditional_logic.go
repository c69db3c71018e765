package graph

import (
	"fmt"
	"time"

	"github.com/dyike/CortexAgents/consts"
	"github.com/dyike/CortexAgents/models"
)

// Phase is the research debate state.
type Phase string

const (
	AwaitingBull Phase = "AWAITING_BULL"
	AwaitingBear Phase = "AWAITING_BEAR"
	Terminal     Phase = "TERMINAL"
)

var riskRotation = []models.Role{models.RoleAggressive, models.RoleConservative, models.RoleNeutral}

// ConditionalLogic owns turn selection, round counting and termination for
// both debates. It never calls agents.
type ConditionalLogic struct {
	MaxDebateRounds      int
	MaxRiskDiscussRounds int
	now                  func() time.Time
}

func NewConditionalLogic(maxDebateRounds, maxRiskRounds int) *ConditionalLogic {
	return &ConditionalLogic{
		MaxDebateRounds:      maxDebateRounds,
		MaxRiskDiscussRounds: maxRiskRounds,
		now:                  time.Now,
	}
}

func (cl *ConditionalLogic) NewDebate() models.DebateState {
	return models.NewDebateState(cl.MaxDebateRounds)
}

func (cl *ConditionalLogic) NewRiskDebate() models.RiskDebateState {
	return models.NewRiskDebateState(cl.MaxRiskDiscussRounds)
}

// DebatePhase derives the state from the log: bull speaks on even lengths.
func (cl *ConditionalLogic) DebatePhase(st *models.DebateState) Phase {
	if st.Terminal || st.Rounds >= st.MaxRounds {
		return Terminal
	}
	if len(st.Utterances)%2 == 0 {
		return AwaitingBull
	}
	return AwaitingBear
}

// ShouldContinueDebate reports whether another research utterance is expected.
func (cl *ConditionalLogic) ShouldContinueDebate(st *models.DebateState) bool {
	return cl.DebatePhase(st) != Terminal
}

// NextDebateSpeaker returns the role expected to speak next.
func (cl *ConditionalLogic) NextDebateSpeaker(st *models.DebateState) (models.Role, bool) {
	switch cl.DebatePhase(st) {
	case AwaitingBull:
		return models.RoleBull, true
	case AwaitingBear:
		return models.RoleBear, true
	}
	return "", false
}

// RecordDebate appends an utterance and advances the machine. A round closes
// when the bear answers; reaching the ceiling makes the debate terminal.
func (cl *ConditionalLogic) RecordDebate(st *models.DebateState, role models.Role, content string) error {
	want, ok := cl.NextDebateSpeaker(st)
	if !ok {
		return protocolErrorf(consts.StageDebate, "%s spoke after the debate terminated", role)
	}
	if role != want {
		return protocolErrorf(consts.StageDebate, "expected %s to speak, got %s", want, role)
	}

	cl.appendUtterance(st, role, content)
	if role == models.RoleBear {
		st.Rounds++
	}
	if st.Rounds >= st.MaxRounds {
		st.Terminal = true
		st.StopReason = consts.StopMaxRounds
	}
	return nil
}

// MarkConverged applies the moderator's early-stop signal. A debate that
// already hit its ceiling keeps max_rounds as the stop reason.
func (cl *ConditionalLogic) MarkConverged(st *models.DebateState) error {
	if len(st.Utterances) == 0 {
		return protocolErrorf(consts.StageDebate, "convergence signalled before any utterance")
	}
	if st.Terminal {
		return nil
	}
	st.Converged = true
	st.Terminal = true
	st.StopReason = consts.StopConverged
	return nil
}

// ShouldContinueRiskDiscussion reports whether another risk utterance is expected.
func (cl *ConditionalLogic) ShouldContinueRiskDiscussion(st *models.RiskDebateState) bool {
	return !cl.RiskTerminal(st)
}

// RiskTerminal requires both the round ceiling and every role having spoken.
func (cl *ConditionalLogic) RiskTerminal(st *models.RiskDebateState) bool {
	if st.Terminal {
		return true
	}
	return st.Rounds >= st.MaxRounds && allRolesSpoke(st)
}

// NextRiskSpeaker rotates aggressive -> conservative -> neutral.
func (cl *ConditionalLogic) NextRiskSpeaker(st *models.RiskDebateState) (models.Role, bool) {
	if cl.RiskTerminal(st) {
		return "", false
	}
	return riskRotation[len(st.Utterances)%len(riskRotation)], true
}

func (cl *ConditionalLogic) RecordRisk(st *models.RiskDebateState, role models.Role, content string) error {
	want, ok := cl.NextRiskSpeaker(st)
	if !ok {
		return protocolErrorf(consts.StageRisk, "%s spoke after the risk discussion terminated", role)
	}
	if role != want {
		return protocolErrorf(consts.StageRisk, "expected %s to speak, got %s", want, role)
	}

	cl.appendUtterance(&st.DebateState, role, content)
	if role == riskRotation[len(riskRotation)-1] {
		st.Rounds++
	}
	if st.Rounds >= st.MaxRounds && allRolesSpoke(st) {
		st.Terminal = true
		st.StopReason = consts.StopMaxRounds
	}
	return nil
}

// RequireRiskTerminal guards the risk manager's synthesis.
func (cl *ConditionalLogic) RequireRiskTerminal(st *models.RiskDebateState) error {
	if !cl.RiskTerminal(st) {
		missing := make([]models.Role, 0, len(riskRotation))
		for _, r := range riskRotation {
			if st.Counts[r] == 0 {
				missing = append(missing, r)
			}
		}
		return protocolErrorf(consts.StageRisk, "risk discussion not terminal (rounds=%d/%d, silent=%v)", st.Rounds, st.MaxRounds, missing)
	}
	return nil
}

func (cl *ConditionalLogic) RequireDebateTerminal(st *models.DebateState) error {
	if cl.DebatePhase(st) != Terminal {
		return protocolErrorf(consts.StageDebate, "debate not terminal (rounds=%d/%d)", st.Rounds, st.MaxRounds)
	}
	return nil
}

func (cl *ConditionalLogic) appendUtterance(st *models.DebateState, role models.Role, content string) {
	if st.Counts == nil {
		st.Counts = make(map[models.Role]int)
	}
	st.Utterances = append(st.Utterances, models.Utterance{
		Role:    role,
		Content: content,
		Round:   st.Rounds,
		Seq:     len(st.Utterances) + 1,
		At:      cl.now(),
	})
	st.Counts[role]++
}

func allRolesSpoke(st *models.RiskDebateState) bool {
	for _, r := range riskRotation {
		if st.Counts[r] == 0 {
			return false
		}
	}
	return true
}

func protocolErrorf(stage, format string, args ...any) error {
	return &ProtocolError{Stage: stage, Detail: fmt.Sprintf(format, args...)}
}
