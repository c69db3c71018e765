package models

import "time"

// MemoryRecord is an append-only (situation, lesson, outcome) entry owned by
// one agent.
type MemoryRecord struct {
	ID        string    `json:"id"`
	Agent     string    `json:"agent"`
	Situation string    `json:"situation"`
	Lesson    string    `json:"lesson"`
	Outcome   string    `json:"outcome"`
	Embedding []float64 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type MemoryMatch struct {
	Record     MemoryRecord `json:"record"`
	Similarity float64      `json:"similarity"`
}
