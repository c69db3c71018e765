package dataflows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/internal/metrics"
	"github.com/dyike/CortexAgents/internal/utils"
	"github.com/dyike/CortexAgents/models"
)

type named interface {
	Name() string
}

// firstOf calls each source in order under the retry policy and returns the
// first success. Sources answering ErrNotSupported are skipped without retry.
func firstOf[S named, T any](ctx context.Context, retry utils.RetryPolicy, sources []S, call func(context.Context, S) (T, error)) (T, error) {
	var (
		zero T
		errs []error
	)
	for _, src := range sources {
		var out T
		_, err := retry.Do(ctx, func(ctx context.Context, attempt int) error {
			v, err := call(ctx, src)
			if errors.Is(err, ErrNotSupported) || errors.Is(err, ErrNoData) {
				return &utils.Permanent{Err: err}
			}
			if err != nil {
				return err
			}
			out = v
			return nil
		})
		if errors.Is(err, ErrNotSupported) {
			continue
		}
		metrics.DataFetchTotal.WithLabelValues(src.Name(), metrics.Result(err)).Inc()
		if err == nil {
			return out, nil
		}

		logger.Ctx(ctx).Warn().Err(err).Str("vendor", src.Name()).Msg("data vendor failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return zero, ErrNotSupported
	}
	return zero, errors.Join(errs...)
}

func chainName[S named](prefix string, sources []S) string {
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name())
	}
	return prefix + "(" + strings.Join(names, ",") + ")"
}

// Fallback chains bar providers in order.
type Fallback struct {
	providers []Provider
	retry     utils.RetryPolicy
}

func NewFallback(retry utils.RetryPolicy, providers ...Provider) *Fallback {
	return &Fallback{providers: providers, retry: retry}
}

func (f *Fallback) Name() string { return chainName("fallback", f.providers) }

func (f *Fallback) Fetch(ctx context.Context, symbol string, rng models.DateRange) ([]models.Bar, error) {
	bars, err := firstOf(ctx, f.retry, f.providers, func(ctx context.Context, p Provider) ([]models.Bar, error) {
		return p.Fetch(ctx, symbol, rng)
	})
	if err != nil {
		return nil, fmt.Errorf("price data for %s: %w", symbol, err)
	}
	return bars, nil
}

type FundamentalsChain struct {
	sources []FundamentalsSource
	retry   utils.RetryPolicy
}

func NewFundamentalsChain(retry utils.RetryPolicy, sources ...FundamentalsSource) *FundamentalsChain {
	return &FundamentalsChain{sources: sources, retry: retry}
}

func (c *FundamentalsChain) Name() string { return chainName("fundamentals", c.sources) }

func (c *FundamentalsChain) Fundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	f, err := firstOf(ctx, c.retry, c.sources, func(ctx context.Context, s FundamentalsSource) (models.Fundamentals, error) {
		return s.Fundamentals(ctx, symbol)
	})
	if err != nil {
		return models.Fundamentals{}, fmt.Errorf("fundamentals for %s: %w", symbol, err)
	}
	return f, nil
}

type NewsChain struct {
	sources []NewsSource
	retry   utils.RetryPolicy
}

func NewNewsChain(retry utils.RetryPolicy, sources ...NewsSource) *NewsChain {
	return &NewsChain{sources: sources, retry: retry}
}

func (c *NewsChain) Name() string { return chainName("news", c.sources) }

func (c *NewsChain) News(ctx context.Context, symbol string, rng models.DateRange) ([]models.NewsItem, error) {
	items, err := firstOf(ctx, c.retry, c.sources, func(ctx context.Context, s NewsSource) ([]models.NewsItem, error) {
		return s.News(ctx, symbol, rng)
	})
	if err != nil {
		return nil, fmt.Errorf("news for %s: %w", symbol, err)
	}
	return items, nil
}

type SocialChain struct {
	sources []SocialSource
	retry   utils.RetryPolicy
}

func NewSocialChain(retry utils.RetryPolicy, sources ...SocialSource) *SocialChain {
	return &SocialChain{sources: sources, retry: retry}
}

func (c *SocialChain) Name() string { return chainName("social", c.sources) }

func (c *SocialChain) Posts(ctx context.Context, symbol string, rng models.DateRange) ([]models.SocialPost, error) {
	posts, err := firstOf(ctx, c.retry, c.sources, func(ctx context.Context, s SocialSource) ([]models.SocialPost, error) {
		return s.Posts(ctx, symbol, rng)
	})
	if err != nil {
		return nil, fmt.Errorf("social posts for %s: %w", symbol, err)
	}
	return posts, nil
}
