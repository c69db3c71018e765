package models

// AgentInitParams describes one analysis request.
type AgentInitParams struct {
	Symbol    string `json:"symbol"`
	TradeDate string `json:"trade_date"`
}

// ReflectParams carries the realized position return for a finished session.
type ReflectParams struct {
	Returns float64 `json:"returns"`
}

// HistoryParams pages through sessions, newest first.
type HistoryParams struct {
	Cursor int64 `json:"cursor" form:"cursor"`
	Limit  int   `json:"limit" form:"limit"`
}
