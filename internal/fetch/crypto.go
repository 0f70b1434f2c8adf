package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/domain"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/infra"

	"github.com/shopspring/decimal"
)

const rateLimitAttempts = 3

// assetsResponse mirrors the CoinCap assets endpoint: every numeric field
// arrives as a string.
type assetsResponse struct {
	Data []struct {
		ID               string `json:"id"`
		Symbol           string `json:"symbol"`
		Name             string `json:"name"`
		PriceUsd         string `json:"priceUsd"`
		ChangePercent24h string `json:"changePercent24Hr"`
		MarketCapUsd     string `json:"marketCapUsd"`
		VolumeUsd24h     string `json:"volumeUsd24Hr"`
		Supply           string `json:"supply"`
	} `json:"data"`
}

// CryptoClient fetches asset state in a single batched request.
type CryptoClient struct {
	apiURL     string
	httpClient *http.Client
	limiter    *infra.RateLimiter
}

// NewCryptoClient creates a crypto bulk-fetch client.
func NewCryptoClient(apiURL string) *CryptoClient {
	return &CryptoClient{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    infra.NewRateLimiter(5, 1),
	}
}

// FetchAssets fetches the given asset ids. Rate-limit responses retry up
// to 3 attempts with a doubling delay starting at 1s; malformed responses
// are hard failures with no retry.
func (c *CryptoClient) FetchAssets(ctx context.Context, ids []string) (map[string]domain.CryptoRecord, error) {
	var lastErr error
	for i := 0; i < rateLimitAttempts; i++ {
		if i > 0 {
			delay := infra.CalculateBackoff(i - 1)
			slog.Info("Retrying crypto fetch after rate limit", slog.Int("attempt", i), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		results, retryable, err := c.doFetch(ctx, ids)
		if err == nil {
			return results, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("rate limit exceeded: %w", lastErr)
}

// doFetch returns the parsed records, whether the failure is retryable,
// and the error.
func (c *CryptoClient) doFetch(ctx context.Context, ids []string) (map[string]domain.CryptoRecord, bool, error) {
	c.limiter.Wait()

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("upstream returned 429")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	var data assetsResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, false, fmt.Errorf("failed to parse assets response: %w", err)
	}
	if data.Data == nil {
		return nil, false, fmt.Errorf("invalid API response format")
	}

	results := make(map[string]domain.CryptoRecord, len(data.Data))
	for _, asset := range data.Data {
		price, err := decimal.NewFromString(asset.PriceUsd)
		if err != nil {
			return nil, false, fmt.Errorf("asset %s: bad price %q", asset.ID, asset.PriceUsd)
		}
		results[asset.ID] = domain.CryptoRecord{
			ID:                asset.ID,
			Symbol:            asset.Symbol,
			Name:              asset.Name,
			Price:             price,
			PriceChange24h:    parseDecimal(asset.ChangePercent24h),
			MarketCap:         parseDecimal(asset.MarketCapUsd),
			Volume:            parseDecimal(asset.VolumeUsd24h),
			CirculatingSupply: parseDecimal(asset.Supply),
		}
	}
	return results, false, nil
}

// parseDecimal tolerates missing secondary fields: only the price is
// load-bearing for the reconciliation pipeline.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
