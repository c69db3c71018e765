package dataflows

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/dyike/CortexAgents/models"
)

// CryptoCompare is the secondary crypto bar source.
type CryptoCompare struct {
	client *resty.Client
	apiKey string
}

func NewCryptoCompare(apiKey string) *CryptoCompare {
	client := resty.New()
	client.SetBaseURL("https://min-api.cryptocompare.com")
	client.SetTimeout(30 * time.Second)
	return &CryptoCompare{client: client, apiKey: apiKey}
}

func (c *CryptoCompare) WithBaseURL(url string) *CryptoCompare {
	c.client.SetBaseURL(url)
	return c
}

func (c *CryptoCompare) Name() string { return "cryptocompare" }

func (c *CryptoCompare) Fetch(ctx context.Context, symbol string, rng models.DateRange) ([]models.Bar, error) {
	if !IsCrypto(symbol) {
		return nil, ErrNotSupported
	}
	days := int(rng.End.Sub(rng.Start).Hours()/24) + 1
	params := map[string]string{
		"fsym":  BaseAsset(symbol),
		"tsym":  "USD",
		"limit": strconv.Itoa(days),
		"toTs":  strconv.FormatInt(rng.End.Unix(), 10),
	}
	if c.apiKey != "" {
		params["api_key"] = c.apiKey
	}

	resp, err := c.client.R().SetContext(ctx).SetQueryParams(params).Get("/data/v2/histoday")
	if err != nil {
		return nil, fmt.Errorf("cryptocompare histoday: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("cryptocompare histoday: HTTP %d", resp.StatusCode())
	}

	doc := gjson.ParseBytes(resp.Body())
	if doc.Get("Response").String() == "Error" {
		return nil, fmt.Errorf("cryptocompare histoday: %s", doc.Get("Message").String())
	}

	last := rng.End.AddDate(0, 0, 1)
	var bars []models.Bar
	for _, row := range doc.Get("Data.Data").Array() {
		ts := time.Unix(row.Get("time").Int(), 0).UTC()
		closePrice := row.Get("close").Float()
		if closePrice == 0 || ts.Before(rng.Start) || !ts.Before(last) {
			continue
		}
		bars = append(bars, models.Bar{
			Time:   ts,
			Open:   decimal.NewFromFloat(row.Get("open").Float()),
			High:   decimal.NewFromFloat(row.Get("high").Float()),
			Low:    decimal.NewFromFloat(row.Get("low").Float()),
			Close:  decimal.NewFromFloat(closePrice),
			Volume: int64(row.Get("volumeto").Float()),
			Source: c.Name(),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("cryptocompare %s: %w", symbol, ErrNoData)
	}
	return bars, nil
}
