package consts

const (
	// Analyst Team
	Agent_MarketAnalyst       = "Market Analyst"
	Agent_SocialAnalyst       = "Social Analyst"
	Agent_NewsAnalyst         = "News Analyst"
	Agent_FundamentalsAnalyst = "Fundamentals Analyst"
	// Research Team
	Agent_BullResearcher  = "Bull Analyst"
	Agent_BearResearcher  = "Bear Analyst"
	Agent_ResearchManager = "Research Manager"
	// Trading Team
	Agent_Trader = "Trader"
	// Risk Management Team
	Agent_RiskyAnalyst   = "Risky Analyst"
	Agent_NeutralAnalyst = "Neutral Analyst"
	Agent_SafeAnalyst    = "Safe Analyst"
	Agent_RiskJudge      = "Risk Judge"
)

// Session lifecycle
const (
	State_Pending = "pending"
	State_Running = "running"
	State_Done    = "done"
	State_Error   = "error"
)

// Debate stop reasons
const (
	StopMaxRounds = "max_rounds"
	StopConverged = "converged"
)
