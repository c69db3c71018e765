package models

import "time"

// AnalystKind enumerates the analyst team.
type AnalystKind string

const (
	KindTechnical   AnalystKind = "technical"
	KindFundamental AnalystKind = "fundamental"
	KindSentiment   AnalystKind = "sentiment"
	KindNews        AnalystKind = "news"
)

// AllAnalystKinds lists the kinds in canonical order.
var AllAnalystKinds = []AnalystKind{KindTechnical, KindFundamental, KindSentiment, KindNews}

func (k AnalystKind) order() int {
	for i, kk := range AllAnalystKinds {
		if kk == k {
			return i
		}
	}
	return len(AllAnalystKinds)
}

// AnalystReport is immutable once produced.
type AnalystReport struct {
	Kind        AnalystKind `json:"kind"`
	Agent       string      `json:"agent"`
	Findings    string      `json:"findings"`
	GeneratedAt time.Time   `json:"generated_at"`
	Degraded    bool        `json:"degraded"`
	Note        string      `json:"note,omitempty"`
}

// Title is the report heading used in prompts and markdown output.
func (r AnalystReport) Title() string {
	switch r.Kind {
	case KindTechnical:
		return "Market Research Report"
	case KindFundamental:
		return "Company Fundamentals Report"
	case KindSentiment:
		return "Social Media Sentiment Report"
	case KindNews:
		return "Latest World Affairs News"
	}
	return string(r.Kind)
}
