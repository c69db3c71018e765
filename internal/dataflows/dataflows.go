// Package dataflows fetches market data, fundamentals, news and social posts
// from external vendors for the analyst team.
package dataflows

import (
	"context"
	"errors"

	"github.com/dyike/CortexAgents/models"
)

var (
	// ErrNotSupported means the vendor does not cover the symbol's asset class.
	ErrNotSupported = errors.New("symbol not supported by vendor")
	ErrNoData       = errors.New("vendor returned no data")
)

// Provider returns daily OHLCV bars for a symbol.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol string, rng models.DateRange) ([]models.Bar, error)
}

type FundamentalsSource interface {
	Name() string
	Fundamentals(ctx context.Context, symbol string) (models.Fundamentals, error)
}

type NewsSource interface {
	Name() string
	News(ctx context.Context, symbol string, rng models.DateRange) ([]models.NewsItem, error)
}

type SocialSource interface {
	Name() string
	Posts(ctx context.Context, symbol string, rng models.DateRange) ([]models.SocialPost, error)
}
