package consts

// Agent identifiers used for prompts, logging and persisted transcripts.
const (
	// Analyst team
	AnalystTeam         = "analyst_team"
	MarketAnalyst       = "market_analyst"
	SocialMediaAnalyst  = "social_media_analyst"
	NewsAnalyst         = "news_analyst"
	FundamentalsAnalyst = "fundamentals_analyst"

	// Research team
	BullResearcher  = "bull_researcher"
	BearResearcher  = "bear_researcher"
	ResearchManager = "research_manager"

	// Trading team
	Trader = "trader"

	// Risk management team
	RiskyAnalyst   = "risky_analyst"
	SafeAnalyst    = "safe_analyst"
	NeutralAnalyst = "neutral_analyst"
	RiskJudge      = "risk_judge"

	Reflector = "reflector"
)

// Pipeline stages in execution order.
const (
	StageAnalyst = "Analyst"
	StageDebate  = "Debate"
	StageRisk    = "Risk"
	StageTrader  = "Trader"
)
