package dataflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/models"
)

var (
	equitySubreddits = []string{"stocks", "investing", "wallstreetbets"}
	cryptoSubreddits = []string{"CryptoCurrency", "CryptoMarkets"}
)

// Reddit searches finance communities through the public JSON endpoints.
type Reddit struct {
	client   *resty.Client
	limiter  *rate.Limiter
	cache    *CacheManager
	maxPosts int
}

func NewReddit(userAgent, cacheDir string, cacheEnabled bool) *Reddit {
	if userAgent == "" {
		userAgent = "CortexAgents/1.0"
	}
	client := resty.New()
	client.SetBaseURL("https://www.reddit.com")
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", userAgent)

	return &Reddit{
		client:   client,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 2),
		cache:    NewCacheManager(filepath.Join(cacheDir, "reddit"), time.Hour, cacheEnabled),
		maxPosts: 30,
	}
}

func (r *Reddit) WithBaseURL(url string) *Reddit {
	r.client.SetBaseURL(url)
	return r
}

func (r *Reddit) Name() string { return "reddit" }

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				Subreddit   string  `json:"subreddit"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				CreatedUTC  float64 `json:"created_utc"`
				Stickied    bool    `json:"stickied"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (r *Reddit) Posts(ctx context.Context, symbol string, rng models.DateRange) ([]models.SocialPost, error) {
	subs := equitySubreddits
	query := NormalizeSymbol(symbol)
	if IsCrypto(symbol) {
		subs = cryptoSubreddits
		query = BaseAsset(symbol)
	}

	cacheKey := map[string]string{"q": query, "end": rng.End.Format("2006-01-02")}
	var cached []models.SocialPost
	if r.cache.Get("reddit", "search", cacheKey, &cached) {
		return cached, nil
	}

	var (
		posts []models.SocialPost
		errs  []error
	)
	last := rng.End.AddDate(0, 0, 1)
	for _, sub := range subs {
		got, err := r.search(ctx, sub, query)
		if err != nil {
			logger.Ctx(ctx).Debug().Err(err).Str("subreddit", sub).Msg("reddit search failed")
			errs = append(errs, err)
			continue
		}
		for _, p := range got {
			if p.CreatedAt.Before(rng.Start) || !p.CreatedAt.Before(last) {
				continue
			}
			posts = append(posts, p)
		}
	}
	if len(errs) == len(subs) {
		return nil, fmt.Errorf("reddit search %s: %w", query, errors.Join(errs...))
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("reddit search %s: %w", query, ErrNoData)
	}

	sort.SliceStable(posts, func(i, j int) bool { return posts[i].Score > posts[j].Score })
	if len(posts) > r.maxPosts {
		posts = posts[:r.maxPosts]
	}
	r.cache.Put(ctx, "reddit", "search", cacheKey, posts)
	return posts, nil
}

func (r *Reddit) search(ctx context.Context, subreddit, query string) ([]models.SocialPost, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":           query,
			"restrict_sr": "1",
			"sort":        "new",
			"t":           "month",
			"limit":       "25",
		}).
		Get("/r/" + subreddit + "/search.json")
	if err != nil {
		return nil, fmt.Errorf("r/%s: %w", subreddit, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("r/%s: HTTP %d", subreddit, resp.StatusCode())
	}

	var listing redditListing
	if err := json.Unmarshal(resp.Body(), &listing); err != nil {
		return nil, fmt.Errorf("parse r/%s: %w", subreddit, err)
	}

	out := make([]models.SocialPost, 0, len(listing.Data.Children))
	for _, c := range listing.Data.Children {
		d := c.Data
		if d.Stickied {
			continue
		}
		out = append(out, models.SocialPost{
			Title:     strings.TrimSpace(d.Title),
			Body:      truncate(strings.TrimSpace(d.Selftext), 500),
			Community: d.Subreddit,
			Score:     d.Score,
			Comments:  d.NumComments,
			CreatedAt: time.Unix(int64(d.CreatedUTC), 0).UTC(),
		})
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
