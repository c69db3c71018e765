package dataflows

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/dyike/CortexAgents/models"
)

const coinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGecko serves crypto bars and coin market data. The public API allows
// roughly 50 calls a minute, so every request waits on a shared limiter.
type CoinGecko struct {
	client  *resty.Client
	limiter *rate.Limiter
	cache   *CacheManager
}

func NewCoinGecko(apiKey, cacheDir string, cacheEnabled bool) *CoinGecko {
	client := resty.New()
	client.SetBaseURL(coinGeckoBaseURL)
	client.SetTimeout(30 * time.Second)
	client.SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("x-cg-demo-api-key", apiKey)
	}

	return &CoinGecko{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/50), 1),
		cache:   NewCacheManager(filepath.Join(cacheDir, "coingecko"), time.Hour, cacheEnabled),
	}
}

// WithBaseURL points the client at another host.
func (c *CoinGecko) WithBaseURL(url string) *CoinGecko {
	c.client.SetBaseURL(url)
	return c
}

func (c *CoinGecko) Name() string { return "coingecko" }

func (c *CoinGecko) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.client.R().SetContext(ctx).SetQueryParams(params).Get(path)
	if err != nil {
		return nil, fmt.Errorf("coingecko %s: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("coingecko %s: HTTP %d: %s", path, resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}

func (c *CoinGecko) Fetch(ctx context.Context, symbol string, rng models.DateRange) ([]models.Bar, error) {
	if !IsCrypto(symbol) {
		return nil, ErrNotSupported
	}
	id := CoinID(symbol)
	params := map[string]string{
		"vs_currency": "usd",
		"from":        strconv.FormatInt(rng.Start.Unix(), 10),
		"to":          strconv.FormatInt(rng.End.AddDate(0, 0, 1).Unix(), 10),
	}

	var cached []models.Bar
	if c.cache.Get("coingecko", "range", map[string]string{"id": id, "from": params["from"], "to": params["to"]}, &cached) {
		return cached, nil
	}

	body, err := c.get(ctx, "/coins/"+id+"/market_chart/range", params)
	if err != nil {
		return nil, err
	}

	points := make([]pricePoint, 0, 128)
	for _, p := range gjson.GetBytes(body, "prices").Array() {
		pair := p.Array()
		if len(pair) < 2 {
			continue
		}
		points = append(points, pricePoint{At: time.UnixMilli(pair[0].Int()).UTC(), Price: pair[1].Float()})
	}
	volumes := make(map[string]float64)
	for _, v := range gjson.GetBytes(body, "total_volumes").Array() {
		pair := v.Array()
		if len(pair) < 2 {
			continue
		}
		volumes[time.UnixMilli(pair[0].Int()).UTC().Format("2006-01-02")] = pair[1].Float()
	}

	bars := dailyBars(points, volumes, c.Name())
	if len(bars) == 0 {
		return nil, fmt.Errorf("coingecko %s: %w", id, ErrNoData)
	}
	c.cache.Put(ctx, "coingecko", "range", map[string]string{"id": id, "from": params["from"], "to": params["to"]}, bars)
	return bars, nil
}

func (c *CoinGecko) Fundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	if !IsCrypto(symbol) {
		return models.Fundamentals{}, ErrNotSupported
	}
	id := CoinID(symbol)
	body, err := c.get(ctx, "/coins/"+id, map[string]string{
		"localization":   "false",
		"tickers":        "false",
		"community_data": "false",
		"developer_data": "false",
	})
	if err != nil {
		return models.Fundamentals{}, err
	}

	doc := gjson.ParseBytes(body)
	if !doc.Get("market_data").Exists() {
		return models.Fundamentals{}, fmt.Errorf("coingecko %s: %w", id, ErrNoData)
	}
	md := doc.Get("market_data")
	metrics := map[string]float64{
		"price":                  md.Get("current_price.usd").Float(),
		"market_cap":             md.Get("market_cap.usd").Float(),
		"market_cap_rank":        doc.Get("market_cap_rank").Float(),
		"total_volume":           md.Get("total_volume.usd").Float(),
		"circulating_supply":     md.Get("circulating_supply").Float(),
		"total_supply":           md.Get("total_supply").Float(),
		"price_change_24h_pct":   md.Get("price_change_percentage_24h").Float(),
		"price_change_7d_pct":    md.Get("price_change_percentage_7d").Float(),
		"price_change_30d_pct":   md.Get("price_change_percentage_30d").Float(),
		"all_time_high":          md.Get("ath.usd").Float(),
		"all_time_high_drawdown": md.Get("ath_change_percentage.usd").Float(),
	}
	if ms := md.Get("max_supply"); ms.Exists() && ms.Type != gjson.Null {
		metrics["max_supply"] = ms.Float()
	}

	return models.Fundamentals{
		Symbol:  NormalizeSymbol(symbol),
		Name:    doc.Get("name").String(),
		Source:  c.Name(),
		Metrics: metrics,
	}, nil
}

type pricePoint struct {
	At    time.Time
	Price float64
}

// dailyBars folds intraday price points into one OHLC bar per UTC day.
// Points must be in chronological order.
func dailyBars(points []pricePoint, volumes map[string]float64, source string) []models.Bar {
	var bars []models.Bar
	var day string
	for _, p := range points {
		d := p.At.Format("2006-01-02")
		price := decimal.NewFromFloat(p.Price)
		if d != day {
			day = d
			start, _ := time.Parse("2006-01-02", d)
			bars = append(bars, models.Bar{
				Time:   start.UTC(),
				Open:   price,
				High:   price,
				Low:    price,
				Close:  price,
				Volume: int64(volumes[d]),
				Source: source,
			})
			continue
		}
		b := &bars[len(bars)-1]
		if price.GreaterThan(b.High) {
			b.High = price
		}
		if price.LessThan(b.Low) {
			b.Low = price
		}
		b.Close = price
	}
	return bars
}
