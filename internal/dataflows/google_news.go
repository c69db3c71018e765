package dataflows

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/dyike/CortexAgents/models"
)

// GoogleNews searches the Google News RSS feed.
type GoogleNews struct {
	client   *resty.Client
	maxItems int
}

func NewGoogleNews() *GoogleNews {
	client := resty.New()
	client.SetBaseURL("https://news.google.com")
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; CortexAgents/1.0)")
	return &GoogleNews{client: client, maxItems: 20}
}

func (g *GoogleNews) WithBaseURL(url string) *GoogleNews {
	g.client.SetBaseURL(url)
	return g
}

func (g *GoogleNews) Name() string { return "google_news" }

type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Source      struct {
		Text string `xml:",chardata"`
	} `xml:"source"`
}

func searchQuery(symbol string) string {
	if IsCrypto(symbol) {
		return fmt.Sprintf("%s %s crypto", BaseAsset(symbol), CoinID(symbol))
	}
	return NormalizeSymbol(symbol) + " stock"
}

func (g *GoogleNews) News(ctx context.Context, symbol string, rng models.DateRange) ([]models.NewsItem, error) {
	query := fmt.Sprintf("%s after:%s before:%s",
		searchQuery(symbol),
		rng.Start.Format("2006-01-02"),
		rng.End.AddDate(0, 0, 1).Format("2006-01-02"),
	)

	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":    query,
			"hl":   "en-US",
			"gl":   "US",
			"ceid": "US:en",
		}).
		Get("/rss/search")
	if err != nil {
		return nil, fmt.Errorf("google news: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("google news: HTTP %d", resp.StatusCode())
	}

	var feed rssFeed
	if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
		return nil, fmt.Errorf("parse google news rss: %w", err)
	}

	items := make([]models.NewsItem, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		if len(items) >= g.maxItems {
			break
		}
		published, _ := time.Parse(time.RFC1123, it.PubDate)
		items = append(items, models.NewsItem{
			Title:       strings.TrimSpace(it.Title),
			Summary:     htmlText(it.Description),
			URL:         it.Link,
			Source:      strings.TrimSpace(it.Source.Text),
			PublishedAt: published,
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("google news %s: %w", symbol, ErrNoData)
	}
	return items, nil
}

// htmlText flattens an HTML fragment to its visible text.
func htmlText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
