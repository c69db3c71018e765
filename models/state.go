package models

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Role identifies a debate participant.
type Role string

const (
	RoleBull         Role = "bull"
	RoleBear         Role = "bear"
	RoleAggressive   Role = "aggressive"
	RoleConservative Role = "conservative"
	RoleNeutral      Role = "neutral"
)

var roleLabels = map[Role]string{
	RoleBull:         "Bull Analyst",
	RoleBear:         "Bear Analyst",
	RoleAggressive:   "Risky Analyst",
	RoleConservative: "Safe Analyst",
	RoleNeutral:      "Neutral Analyst",
}

func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}

// Utterance is one turn in a debate. Round is the 0-based round it belongs to.
type Utterance struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Round   int       `json:"round"`
	Seq     int       `json:"seq"`
	At      time.Time `json:"at"`
}

// DebateState tracks a bounded multi-round argument. The log is append-only.
type DebateState struct {
	Utterances []Utterance  `json:"utterances"`
	Rounds     int          `json:"rounds"`
	MaxRounds  int          `json:"max_rounds"`
	Counts     map[Role]int `json:"counts"`
	Converged  bool         `json:"converged"`
	Terminal   bool         `json:"terminal"`
	StopReason string       `json:"stop_reason,omitempty"`
}

func NewDebateState(maxRounds int) DebateState {
	return DebateState{MaxRounds: maxRounds, Counts: make(map[Role]int)}
}

// Len returns the number of utterances recorded.
func (d *DebateState) Len() int {
	return len(d.Utterances)
}

func (d *DebateState) Last() (Utterance, bool) {
	if len(d.Utterances) == 0 {
		return Utterance{}, false
	}
	return d.Utterances[len(d.Utterances)-1], true
}

// LastBy returns the most recent utterance by role.
func (d *DebateState) LastBy(role Role) (Utterance, bool) {
	for i := len(d.Utterances) - 1; i >= 0; i-- {
		if d.Utterances[i].Role == role {
			return d.Utterances[i], true
		}
	}
	return Utterance{}, false
}

// Transcript renders the log in chronological order, one labeled turn per paragraph.
func (d *DebateState) Transcript() string {
	var b strings.Builder
	for i, u := range d.Utterances {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(u.Role.Label())
		b.WriteString(": ")
		b.WriteString(u.Content)
	}
	return b.String()
}

// RiskDebateState has the debate shape with three roles.
type RiskDebateState struct {
	DebateState
}

func NewRiskDebateState(maxRounds int) RiskDebateState {
	return RiskDebateState{DebateState: NewDebateState(maxRounds)}
}

// Session is one decision request and its accumulated state.
type Session struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	TradeDate time.Time `json:"trade_date"`
	IsCrypto  bool      `json:"is_crypto"`
	Stage     string    `json:"stage"`
	Stages    []string  `json:"stages"`

	Reports map[AnalystKind]AnalystReport `json:"reports"`

	Research DebateState     `json:"research"`
	Risk     RiskDebateState `json:"risk"`

	Verdict        *ResearchVerdict `json:"verdict,omitempty"`
	RiskAssessment *RiskAssessment  `json:"risk_assessment,omitempty"`
	Memories       []MemoryMatch    `json:"memories,omitempty"`
	Decision       *Decision        `json:"decision,omitempty"`

	mu sync.Mutex
}

func NewSession(id, symbol string, date time.Time, maxDebate, maxRisk int) *Session {
	return &Session{
		ID:        id,
		Symbol:    symbol,
		TradeDate: date,
		Reports:   make(map[AnalystKind]AnalystReport),
		Research:  NewDebateState(maxDebate),
		Risk:      NewRiskDebateState(maxRisk),
	}
}

func (s *Session) Date() string {
	return s.TradeDate.Format("2006-01-02")
}

// AddReport inserts report once per kind and reports whether it was stored.
func (s *Session) AddReport(report AnalystReport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Reports[report.Kind]; ok {
		return false
	}
	s.Reports[report.Kind] = report
	return true
}

func (s *Session) HasReport(kind AnalystKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Reports[kind]
	return ok
}

func (s *Session) Report(kind AnalystKind) (AnalystReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.Reports[kind]
	return r, ok
}

// OrderedReports returns reports sorted by the canonical kind order.
func (s *Session) OrderedReports() []AnalystReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AnalystReport, 0, len(s.Reports))
	for _, r := range s.Reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind.order() < out[j].Kind.order() })
	return out
}

// Situation summarizes the analyst reports; it is the memory query text.
func (s *Session) Situation() string {
	reports := s.OrderedReports()
	parts := make([]string, 0, len(reports))
	for _, r := range reports {
		parts = append(parts, r.Findings)
	}
	return strings.Join(parts, "\n\n")
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s %s@%s stage=%s", s.ID, s.Symbol, s.Date(), s.Stage)
}
