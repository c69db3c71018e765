package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dyike/CortexAgents/models"
)

// Finnhub serves company news for equities.
type Finnhub struct {
	client   *resty.Client
	cache    *CacheManager
	apiKey   string
	maxItems int
}

func NewFinnhub(apiKey, cacheDir string, cacheEnabled bool) *Finnhub {
	client := resty.New()
	client.SetBaseURL("https://finnhub.io/api/v1")
	client.SetTimeout(30 * time.Second)

	return &Finnhub{
		client:   client,
		cache:    NewCacheManager(filepath.Join(cacheDir, "finnhub"), 6*time.Hour, cacheEnabled),
		apiKey:   apiKey,
		maxItems: 20,
	}
}

func (f *Finnhub) WithBaseURL(url string) *Finnhub {
	f.client.SetBaseURL(url)
	return f
}

func (f *Finnhub) Name() string { return "finnhub" }

type finnhubNews struct {
	Category string `json:"category"`
	DateTime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

func (f *Finnhub) News(ctx context.Context, symbol string, rng models.DateRange) ([]models.NewsItem, error) {
	if IsCrypto(symbol) {
		return nil, ErrNotSupported
	}
	if f.apiKey == "" {
		return nil, errors.New("finnhub API key not configured")
	}
	symbol = NormalizeSymbol(symbol)

	cacheKey := map[string]string{
		"symbol": symbol,
		"from":   rng.Start.Format("2006-01-02"),
		"to":     rng.End.Format("2006-01-02"),
	}
	var cached []models.NewsItem
	if f.cache.Get("finnhub", "company_news", cacheKey, &cached) {
		return cached, nil
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"from":   cacheKey["from"],
			"to":     cacheKey["to"],
			"token":  f.apiKey,
		}).
		Get("/company-news")
	if err != nil {
		return nil, fmt.Errorf("finnhub news %s: %w", symbol, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("finnhub news %s: HTTP %d", symbol, resp.StatusCode())
	}

	var raw []finnhubNews
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("parse finnhub news: %w", err)
	}

	items := make([]models.NewsItem, 0, len(raw))
	for _, n := range raw {
		items = append(items, models.NewsItem{
			Title:       n.Headline,
			Summary:     n.Summary,
			URL:         n.URL,
			Source:      n.Source,
			PublishedAt: time.Unix(n.DateTime, 0).UTC(),
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].PublishedAt.After(items[j].PublishedAt) })
	if len(items) > f.maxItems {
		items = items[:f.maxItems]
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("finnhub news %s: %w", symbol, ErrNoData)
	}

	f.cache.Put(ctx, "finnhub", "company_news", cacheKey, items)
	return items, nil
}
