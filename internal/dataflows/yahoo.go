package dataflows

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
	"github.com/piquette/finance-go/quote"

	"github.com/dyike/CortexAgents/models"
)

// Yahoo serves bars for equities and crypto pairs plus equity fundamentals.
type Yahoo struct {
	cache *CacheManager
}

func NewYahoo(cacheDir string, cacheEnabled bool) *Yahoo {
	return &Yahoo{
		cache: NewCacheManager(filepath.Join(cacheDir, "yahoo_finance"), 24*time.Hour, cacheEnabled),
	}
}

func (y *Yahoo) Name() string { return "yahoo" }

func (y *Yahoo) Fetch(ctx context.Context, symbol string, rng models.DateRange) ([]models.Bar, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]string{
		"symbol": symbol,
		"start":  rng.Start.Format("2006-01-02"),
		"end":    rng.End.Format("2006-01-02"),
	}
	var cached []models.Bar
	if y.cache.Get("yahoo", "historical", cacheKey, &cached) {
		return cached, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// chart.Get takes an exclusive end
	end := rng.End.AddDate(0, 0, 1)
	iter := chart.Get(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&rng.Start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	bars := make([]models.Bar, 0, 64)
	for iter.Next() {
		b := iter.Bar()
		bars = append(bars, models.Bar{
			Time:   time.Unix(int64(b.Timestamp), 0).UTC(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
			Source: y.Name(),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, ErrNoData)
	}

	y.cache.Put(ctx, "yahoo", "historical", cacheKey, bars)
	return bars, nil
}

func (y *Yahoo) Fundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	symbol = NormalizeSymbol(symbol)
	if IsCrypto(symbol) {
		return y.quoteFundamentals(ctx, symbol)
	}

	var cached models.Fundamentals
	if y.cache.Get("yahoo", "fundamentals", symbol, &cached) {
		return cached, nil
	}
	if err := ctx.Err(); err != nil {
		return models.Fundamentals{}, err
	}

	eq, err := equity.Get(symbol)
	if err != nil {
		return models.Fundamentals{}, fmt.Errorf("yahoo equity %s: %w", symbol, err)
	}
	if eq == nil {
		return models.Fundamentals{}, fmt.Errorf("yahoo equity %s: %w", symbol, ErrNoData)
	}

	f := models.Fundamentals{
		Symbol: symbol,
		Name:   eq.LongName,
		Source: y.Name(),
		Metrics: map[string]float64{
			"price":               eq.RegularMarketPrice,
			"change_percent":      eq.RegularMarketChangePercent,
			"market_cap":          float64(eq.MarketCap),
			"trailing_pe":         eq.TrailingPE,
			"forward_pe":          eq.ForwardPE,
			"eps_ttm":             eq.EpsTrailingTwelveMonths,
			"eps_forward":         eq.EpsForward,
			"book_value":          eq.BookValue,
			"price_to_book":       eq.PriceToBook,
			"dividend_yield":      eq.TrailingAnnualDividendYield,
			"shares_outstanding":  float64(eq.SharesOutstanding),
			"fifty_two_week_high": eq.FiftyTwoWeekHigh,
			"fifty_two_week_low":  eq.FiftyTwoWeekLow,
			"fifty_day_average":   eq.FiftyDayAverage,
			"two_hundred_day_avg": eq.TwoHundredDayAverage,
			"avg_volume_3_month":  float64(eq.AverageDailyVolume3Month),
		},
	}
	if f.Name == "" {
		f.Name = eq.ShortName
	}

	y.cache.Put(ctx, "yahoo", "fundamentals", symbol, f)
	return f, nil
}

func (y *Yahoo) quoteFundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	if err := ctx.Err(); err != nil {
		return models.Fundamentals{}, err
	}
	q, err := quote.Get(symbol)
	if err != nil {
		return models.Fundamentals{}, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}
	if q == nil {
		return models.Fundamentals{}, fmt.Errorf("yahoo quote %s: %w", symbol, ErrNoData)
	}
	return models.Fundamentals{
		Symbol: symbol,
		Name:   q.ShortName,
		Source: y.Name(),
		Metrics: map[string]float64{
			"price":               q.RegularMarketPrice,
			"change_percent":      q.RegularMarketChangePercent,
			"fifty_two_week_high": q.FiftyTwoWeekHigh,
			"fifty_two_week_low":  q.FiftyTwoWeekLow,
			"fifty_day_average":   q.FiftyDayAverage,
			"two_hundred_day_avg": q.TwoHundredDayAverage,
			"volume":              float64(q.RegularMarketVolume),
		},
		Notes: []string{"crypto pair: quote metrics only"},
	}, nil
}
