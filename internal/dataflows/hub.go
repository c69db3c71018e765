package dataflows

import (
	"time"

	"github.com/dyike/CortexAgents/config"
	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/internal/utils"
)

// Hub is the set of data capabilities handed to the analyst team.
type Hub struct {
	Prices       Provider
	Fundamentals FundamentalsSource
	News         NewsSource
	Social       SocialSource
}

// NewHub wires the vendor chains from cfg. Crypto pairs go CoinGecko ->
// CryptoCompare -> Yahoo; equities go Longport (when configured) -> Yahoo.
func NewHub(cfg config.Config) *Hub {
	retry := utils.DefaultRetryPolicy()
	retry.MaxAttempts = 2
	if cfg.RetryBaseMillis > 0 {
		retry.BaseDelay = time.Duration(cfg.RetryBaseMillis) * time.Millisecond
	}

	coingecko := NewCoinGecko(cfg.CoinGeckoAPIKey, cfg.DataCacheDir, cfg.CacheEnabled)
	yahoo := NewYahoo(cfg.DataCacheDir, cfg.CacheEnabled)

	prices := []Provider{coingecko, NewCryptoCompare(cfg.CryptoCompareAPIKey)}
	fundamentals := []FundamentalsSource{coingecko, yahoo}
	if cfg.HasLongport() {
		lp, err := NewLongport(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken)
		if err != nil {
			logger.L().Warn().Err(err).Msg("longport disabled")
		} else {
			prices = append(prices, lp)
			fundamentals = append(fundamentals, lp)
		}
	}
	prices = append(prices, yahoo)

	var news []NewsSource
	if cfg.FinnhubAPIKey != "" {
		news = append(news, NewFinnhub(cfg.FinnhubAPIKey, cfg.DataCacheDir, cfg.CacheEnabled))
	}
	news = append(news, NewGoogleNews())

	return &Hub{
		Prices:       NewFallback(retry, prices...),
		Fundamentals: NewFundamentalsChain(retry, fundamentals...),
		News:         NewNewsChain(retry, news...),
		Social:       NewSocialChain(retry, NewReddit(cfg.RedditUserAgent, cfg.DataCacheDir, cfg.CacheEnabled)),
	}
}
