package models

import "time"

// SessionRecord is the persisted summary of a session.
type SessionRecord struct {
	ID         string    `json:"id"`
	RowID      int64     `json:"row_id"`
	Symbol     string    `json:"symbol"`
	TradeDate  string    `json:"trade_date"`
	Status     string    `json:"status"`
	Stage      string    `json:"stage"`
	Error      string    `json:"error,omitempty"`
	FailedAt   string    `json:"failed_stage,omitempty"`
	Action     string    `json:"action,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MessageRecord is one persisted report, utterance or verdict.
type MessageRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Agent     string    `json:"agent"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Seq       int       `json:"seq"`
	Degraded  bool      `json:"degraded,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
