package models

import (
	"strings"
	"time"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold:
		return true
	}
	return false
}

// ParseAction accepts common spellings ("buy", "Sell", " HOLD ").
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	return a, a.Valid()
}

// ResearchVerdict is the moderator's synthesis of the bull/bear debate.
type ResearchVerdict struct {
	Stance     Action  `json:"stance"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// RiskAssessment is the risk manager's stance. Confidence never exceeds the verdict's.
type RiskAssessment struct {
	Stance     Action  `json:"stance"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
	Downgraded bool    `json:"downgraded"`
}

type Decision struct {
	SessionID  string          `json:"session_id"`
	Symbol     string          `json:"symbol"`
	TradeDate  string          `json:"trade_date"`
	Action     Action          `json:"action"`
	Confidence float64         `json:"confidence"`
	Rationale  string          `json:"rationale"`
	Reports    []AnalystReport `json:"reports"`
	Verdict    ResearchVerdict `json:"verdict"`
	Risk       RiskAssessment  `json:"risk"`
	Memories   []MemoryMatch   `json:"memories,omitempty"`
	DecidedAt  time.Time       `json:"decided_at"`
}
