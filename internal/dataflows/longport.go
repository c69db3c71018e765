package dataflows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"

	"github.com/dyike/CortexAgents/models"
)

// Longport serves daily candlesticks and static info for listed equities.
// The quote connection is opened on first use.
type Longport struct {
	appKey, appSecret, accessToken string

	once     sync.Once
	quoteCtx *quote.QuoteContext
	initErr  error
}

func NewLongport(appKey, appSecret, accessToken string) (*Longport, error) {
	if appKey == "" || appSecret == "" || accessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}
	return &Longport{appKey: appKey, appSecret: appSecret, accessToken: accessToken}, nil
}

func (l *Longport) Name() string { return "longport" }

func (l *Longport) connect() (*quote.QuoteContext, error) {
	l.once.Do(func() {
		conf, err := lpconfig.New(lpconfig.WithConfigKey(l.appKey, l.appSecret, l.accessToken))
		if err != nil {
			l.initErr = fmt.Errorf("longport config: %w", err)
			return
		}
		l.quoteCtx, l.initErr = quote.NewFromCfg(conf)
	})
	return l.quoteCtx, l.initErr
}

// LongportSymbol maps a plain ticker to Longport's market-qualified form.
func LongportSymbol(symbol string) string {
	symbol = NormalizeSymbol(symbol)
	if strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + ".US"
}

func (l *Longport) Fetch(ctx context.Context, symbol string, rng models.DateRange) ([]models.Bar, error) {
	if IsCrypto(symbol) {
		return nil, ErrNotSupported
	}
	qc, err := l.connect()
	if err != nil {
		return nil, err
	}

	count := int(rng.End.Sub(rng.Start).Hours()/24) + 1
	if count < 1 {
		count = 1
	}
	// candlesticks are anchored at today, so widen the window to reach back past rng.End
	count += int(time.Since(rng.End).Hours() / 24)
	if count > 1000 {
		count = 1000
	}

	sticks, err := qc.Candlesticks(ctx, LongportSymbol(symbol), quote.PeriodDay, int32(count), quote.AdjustTypeNo)
	if err != nil {
		return nil, fmt.Errorf("longport candlesticks %s: %w", symbol, err)
	}

	last := rng.End.AddDate(0, 0, 1)
	bars := make([]models.Bar, 0, len(sticks))
	for _, s := range sticks {
		if s == nil || s.Open == nil || s.High == nil || s.Low == nil || s.Close == nil {
			continue
		}
		ts := time.Unix(s.Timestamp, 0).UTC()
		if ts.Before(rng.Start) || !ts.Before(last) {
			continue
		}
		bars = append(bars, models.Bar{
			Time:   ts,
			Open:   *s.Open,
			High:   *s.High,
			Low:    *s.Low,
			Close:  *s.Close,
			Volume: s.Volume,
			Source: l.Name(),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("longport %s: %w", symbol, ErrNoData)
	}
	return bars, nil
}

func (l *Longport) Fundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	if IsCrypto(symbol) {
		return models.Fundamentals{}, ErrNotSupported
	}
	qc, err := l.connect()
	if err != nil {
		return models.Fundamentals{}, err
	}
	infos, err := qc.StaticInfo(ctx, []string{LongportSymbol(symbol)})
	if err != nil {
		return models.Fundamentals{}, fmt.Errorf("longport static info %s: %w", symbol, err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return models.Fundamentals{}, fmt.Errorf("longport static info %s: %w", symbol, ErrNoData)
	}
	info := infos[0]
	return models.Fundamentals{
		Symbol:  NormalizeSymbol(symbol),
		Name:    info.NameEn,
		Source:  l.Name(),
		Metrics: map[string]float64{"lot_size": float64(info.LotSize)},
		Notes:   []string{fmt.Sprintf("exchange %s, currency %s", info.Exchange, info.Currency)},
	}, nil
}
