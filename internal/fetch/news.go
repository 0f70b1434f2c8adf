package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/domain"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/infra"
)

// maxArticles caps how many articles a single fetch keeps.
const maxArticles = 5

// newsResponse mirrors the newsdata.io shape.
type newsResponse struct {
	Results []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Link        string `json:"link"`
		PubDate     string `json:"pubDate"`
		SourceID    string `json:"source_id"`
	} `json:"results"`
}

// NewsClient fetches top articles with an explicit in-memory cache:
// a second call within the TTL returns the cached list without a network
// round trip.
type NewsClient struct {
	apiURL     string
	apiKey     string
	cacheTTL   time.Duration
	httpClient *http.Client
	limiter    *infra.RateLimiter

	mu        sync.Mutex
	cached    []domain.Article
	fetchedAt time.Time
	now       func() time.Time
}

// NewNewsClient creates a news client with the given cache TTL.
func NewNewsClient(apiURL, apiKey string, cacheTTL time.Duration) *NewsClient {
	return &NewsClient{
		apiURL:     apiURL,
		apiKey:     apiKey,
		cacheTTL:   cacheTTL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    infra.NewRateLimiter(5, 1),
		now:        time.Now,
	}
}

// SetNowFunc overrides the cache clock. Test hook.
func (c *NewsClient) SetNowFunc(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// FetchTop returns up to 5 articles, newest first as returned upstream.
// Any article missing a title or link invalidates the whole response.
func (c *NewsClient) FetchTop(ctx context.Context) ([]domain.Article, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("news API key is not configured")
	}

	c.mu.Lock()
	if c.cached != nil && c.now().Sub(c.fetchedAt) < c.cacheTTL {
		out := append([]domain.Article(nil), c.cached...)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	articles, err := c.doFetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cached = articles
	c.fetchedAt = c.now()
	c.mu.Unlock()

	return append([]domain.Article(nil), articles...), nil
}

func (c *NewsClient) doFetch(ctx context.Context) ([]domain.Article, error) {
	c.limiter.Wait()

	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("q", "cryptocurrency")
	q.Set("language", "en")
	q.Set("category", "business")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var data newsResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse news response: %w", err)
	}
	if data.Results == nil {
		return nil, fmt.Errorf("invalid API response format")
	}

	results := data.Results
	if len(results) > maxArticles {
		results = results[:maxArticles]
	}

	articles := make([]domain.Article, 0, len(results))
	for _, r := range results {
		if r.Title == "" || r.Link == "" {
			return nil, fmt.Errorf("invalid article data format")
		}
		article := domain.Article{
			Title:       r.Title,
			Description: r.Description,
			URL:         r.Link,
			PublishedAt: r.PubDate,
			Source:      r.SourceID,
		}
		if article.Description == "" {
			article.Description = "No description available"
		}
		if article.PublishedAt == "" {
			article.PublishedAt = c.now().UTC().Format(time.RFC3339)
		}
		if article.Source == "" {
			article.Source = "Unknown Source"
		}
		articles = append(articles, article)
	}

	return articles, nil
}
