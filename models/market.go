package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateRange is inclusive on both ends.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Lookback returns the range of days ending at end.
func Lookback(end time.Time, days int) DateRange {
	return DateRange{Start: end.AddDate(0, 0, -days), End: end}
}

// Bar is one OHLCV record.
type Bar struct {
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
	Source string          `json:"source"`
}

type NewsItem struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

type SocialPost struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Community string    `json:"community"`
	Score     int       `json:"score"`
	Comments  int       `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
}

// Fundamentals is a flat set of named metrics from whichever vendor answered.
type Fundamentals struct {
	Symbol  string             `json:"symbol"`
	Name    string             `json:"name"`
	Source  string             `json:"source"`
	Metrics map[string]float64 `json:"metrics"`
	Notes   []string           `json:"notes,omitempty"`
}
