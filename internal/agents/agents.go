// Package agents defines the capabilities of the trading team and the
// helpers they share for building prompts.
package agents

import (
	"context"
	"time"

	"github.com/dyike/CortexAgents/models"
)

// Subject is what an analyst is asked to cover.
type Subject struct {
	SessionID    string
	Symbol       string
	TradeDate    time.Time
	IsCrypto     bool
	LookbackDays int
}

func (s Subject) Date() string {
	return s.TradeDate.Format("2006-01-02")
}

func (s Subject) AssetType() string {
	if s.IsCrypto {
		return "cryptocurrency"
	}
	return "equity"
}

func (s Subject) Range() models.DateRange {
	days := s.LookbackDays
	if days <= 0 {
		days = 90
	}
	return models.Lookback(s.TradeDate, days)
}

// Analyst produces one report of its kind per session.
type Analyst interface {
	Kind() models.AnalystKind
	Name() string
	Produce(ctx context.Context, subject Subject) (models.AnalystReport, error)
}

// Turn is the read-only view handed to a debater or judge.
type Turn struct {
	Symbol    string
	TradeDate string
	Reports   []models.AnalystReport
	Log       *models.DebateState
	Memories  []models.MemoryMatch
	Verdict   *models.ResearchVerdict
}

type Debater interface {
	Role() models.Role
	Name() string
	Speak(ctx context.Context, turn Turn) (string, error)
}

// Moderator judges the research debate.
type Moderator interface {
	Converged(ctx context.Context, turn Turn) (bool, error)
	Verdict(ctx context.Context, turn Turn) (models.ResearchVerdict, error)
}

// RiskJudge turns the risk discussion into a stance.
type RiskJudge interface {
	Assess(ctx context.Context, turn Turn) (models.RiskAssessment, error)
}

// TraderInput is everything the trader sees.
type TraderInput struct {
	Symbol    string
	TradeDate string
	Reports   []models.AnalystReport
	Verdict   models.ResearchVerdict
	Risk      models.RiskAssessment
	Memories  []models.MemoryMatch
}

// Proposal is the trader's reply. Explicit is false when no
// FINAL TRANSACTION PROPOSAL line was found.
type Proposal struct {
	Action     models.Action
	Explicit   bool
	Confidence float64
	Rationale  string
}

type Trader interface {
	Decide(ctx context.Context, in TraderInput) (Proposal, error)
}

// Team is the full set of agents the orchestrator drives.
type Team struct {
	Analysts     []Analyst
	Bull         Debater
	Bear         Debater
	Moderator    Moderator
	RiskDebaters map[models.Role]Debater
	RiskJudge    RiskJudge
	Trader       Trader
}
