package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/domain"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/infra"
)

// weatherResponse mirrors the OpenWeather current-weather shape.
type weatherResponse struct {
	Main *struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
	Message string `json:"message"`
}

// WeatherClient fetches current weather, one request per city.
type WeatherClient struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	limiter    *infra.RateLimiter
}

// NewWeatherClient creates a weather client.
func NewWeatherClient(apiURL, apiKey string) *WeatherClient {
	return &WeatherClient{
		apiURL:     apiURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    infra.NewRateLimiter(10, 5),
	}
}

// FetchAll fetches all cities concurrently. Each city fails independently;
// the call succeeds if at least one city resolves, returning only the
// successes. Zero successes returns an error concatenating every
// per-city failure.
func (c *WeatherClient) FetchAll(ctx context.Context, cities []string) (map[string]domain.WeatherRecord, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("weather API key is not configured")
	}

	var (
		mu      sync.Mutex
		results = make(map[string]domain.WeatherRecord)
		errs    []string
	)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5)

	for _, city := range cities {
		wg.Add(1)
		go func(city string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			rec, err := c.fetchCity(ctx, city)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", city, err))
				return
			}
			results[city] = rec
		}(city)
	}

	wg.Wait()

	if len(results) == 0 {
		return nil, fmt.Errorf("failed to fetch weather data: %s", strings.Join(errs, ", "))
	}
	return results, nil
}

func (c *WeatherClient) fetchCity(ctx context.Context, city string) (domain.WeatherRecord, error) {
	c.limiter.Wait()

	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return domain.WeatherRecord{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WeatherRecord{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.WeatherRecord{}, err
	}

	var data weatherResponse
	if resp.StatusCode != http.StatusOK {
		// Upstream error bodies carry a message field worth surfacing.
		if json.Unmarshal(body, &data) == nil && data.Message != "" {
			return domain.WeatherRecord{}, fmt.Errorf("%s", data.Message)
		}
		return domain.WeatherRecord{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, &data); err != nil {
		return domain.WeatherRecord{}, err
	}
	if data.Main == nil || len(data.Weather) == 0 {
		return domain.WeatherRecord{}, fmt.Errorf("invalid API response format")
	}

	return domain.WeatherRecord{
		City:        city,
		Temperature: data.Main.Temp,
		Humidity:    data.Main.Humidity,
		Conditions:  data.Weather[0].Main,
	}, nil
}
