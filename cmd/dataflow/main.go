// Command dataflow fetches what the analyst team would see for one symbol
// and prints it as JSON. Useful for checking vendor credentials and fallbacks.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dyike/CortexAgents/config"
	"github.com/dyike/CortexAgents/internal/dataflows"
	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/models"
)

type snapshot struct {
	Symbol       string               `json:"symbol"`
	Range        models.DateRange     `json:"range"`
	Bars         int                  `json:"bars"`
	Indicators   string               `json:"indicators,omitempty"`
	Fundamentals *models.Fundamentals `json:"fundamentals,omitempty"`
	News         []models.NewsItem    `json:"news,omitempty"`
	Posts        []models.SocialPost  `json:"posts,omitempty"`
	Errors       map[string]string    `json:"errors,omitempty"`
}

func main() {
	symbol := flag.String("symbol", "AAPL", "ticker or crypto pair")
	date := flag.String("date", time.Now().Format("2006-01-02"), "end date YYYY-MM-DD")
	days := flag.Int("days", 0, "lookback days (defaults to config)")
	flag.Parse()

	cfg := config.DefaultConfig()
	logger.SetLevel(cfg.LogLevel)
	if err := dataflows.ValidateSymbol(*symbol); err != nil {
		fail(err)
	}
	end, err := time.Parse("2006-01-02", *date)
	if err != nil {
		fail(err)
	}
	if *days <= 0 {
		*days = cfg.LookbackDays
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sym := dataflows.NormalizeSymbol(*symbol)
	hub := dataflows.NewHub(*cfg)
	snap := snapshot{Symbol: sym, Range: models.Lookback(end, *days), Errors: map[string]string{}}

	if bars, err := hub.Prices.Fetch(ctx, sym, snap.Range); err != nil {
		snap.Errors["prices"] = err.Error()
	} else {
		snap.Bars = len(bars)
		snap.Indicators = dataflows.ComputeIndicators(bars).String()
	}
	if f, err := hub.Fundamentals.Fundamentals(ctx, sym); err != nil {
		snap.Errors["fundamentals"] = err.Error()
	} else {
		snap.Fundamentals = &f
	}
	news := models.Lookback(end, 7)
	if items, err := hub.News.News(ctx, sym, news); err != nil {
		snap.Errors["news"] = err.Error()
	} else {
		snap.News = items
	}
	if posts, err := hub.Social.Posts(ctx, sym, news); err != nil {
		snap.Errors["social"] = err.Error()
	} else {
		snap.Posts = posts
	}

	payload, _ := json.MarshalIndent(snap, "", "  ")
	fmt.Println(string(payload))
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
