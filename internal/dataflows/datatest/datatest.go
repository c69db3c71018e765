// Package datatest provides canned data sources for tests.
package datatest

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/CortexAgents/internal/dataflows"
	"github.com/dyike/CortexAgents/models"
)

// Bars returns n synthetic daily bars ending at end with a gentle uptrend.
func Bars(end time.Time, n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = models.Bar{
			Time:   end.AddDate(0, 0, i-n+1),
			Open:   decimal.NewFromFloat(c - 0.5),
			High:   decimal.NewFromFloat(c + 1),
			Low:    decimal.NewFromFloat(c - 1),
			Close:  decimal.NewFromFloat(c),
			Volume: 1_000_000,
			Source: "static",
		}
	}
	return bars
}

// Source answers every capability with fixed data or a fixed error.
type Source struct {
	Bars        []models.Bar
	Fundamental models.Fundamentals
	Items       []models.NewsItem
	SocialPosts []models.SocialPost
	PricesErr   error
	FundErr     error
	NewsErr     error
	SocialErr   error
}

// NewSource returns a Source with plausible data for every capability.
func NewSource(end time.Time) *Source {
	return &Source{
		Bars: Bars(end, 60),
		Fundamental: models.Fundamentals{
			Symbol:  "TEST",
			Name:    "Test Asset",
			Source:  "static",
			Metrics: map[string]float64{"market_cap": 1e12, "trailing_pe": 28.5},
		},
		Items: []models.NewsItem{
			{Title: "Asset rallies on strong demand", Source: "Wire", PublishedAt: end.AddDate(0, 0, -1)},
		},
		SocialPosts: []models.SocialPost{
			{Title: "Loading up", Community: "stocks", Score: 120, Comments: 30, CreatedAt: end.AddDate(0, 0, -2)},
		},
	}
}

func (s *Source) Name() string { return "static" }

func (s *Source) Fetch(ctx context.Context, symbol string, rng models.DateRange) ([]models.Bar, error) {
	if s.PricesErr != nil {
		return nil, s.PricesErr
	}
	return s.Bars, nil
}

func (s *Source) Fundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	if s.FundErr != nil {
		return models.Fundamentals{}, s.FundErr
	}
	return s.Fundamental, nil
}

func (s *Source) News(ctx context.Context, symbol string, rng models.DateRange) ([]models.NewsItem, error) {
	if s.NewsErr != nil {
		return nil, s.NewsErr
	}
	return s.Items, nil
}

func (s *Source) Posts(ctx context.Context, symbol string, rng models.DateRange) ([]models.SocialPost, error) {
	if s.SocialErr != nil {
		return nil, s.SocialErr
	}
	return s.SocialPosts, nil
}

// Hub wires s into every slot of a dataflows.Hub.
func (s *Source) Hub() *dataflows.Hub {
	return &dataflows.Hub{Prices: s, Fundamentals: s, News: s, Social: s}
}
