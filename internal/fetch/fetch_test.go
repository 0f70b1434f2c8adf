package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// =====================================================
// Weather
// =====================================================

func TestWeatherFetchAll_MissingKeyFailsFast(t *testing.T) {
	c := NewWeatherClient("http://unused", "")
	if _, err := c.FetchAll(context.Background(), []string{"Tokyo"}); err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestWeatherFetchAll_PartialFailureIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		city := r.URL.Query().Get("q")
		if city == "Atlantis" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"city not found"}`))
			return
		}
		w.Write([]byte(`{"main":{"temp":21.5,"humidity":60},"weather":[{"main":"Clouds"}]}`))
	}))
	defer server.Close()

	c := NewWeatherClient(server.URL, "test-key")
	results, err := c.FetchAll(context.Background(), []string{"Tokyo", "Atlantis"})
	if err != nil {
		t.Fatalf("one city succeeded, call must succeed: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	rec := results["Tokyo"]
	if rec.Temperature != 21.5 || rec.Humidity != 60 || rec.Conditions != "Clouds" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestWeatherFetchAll_AllFailuresAggregated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"city not found"}`))
	}))
	defer server.Close()

	c := NewWeatherClient(server.URL, "test-key")
	_, err := c.FetchAll(context.Background(), []string{"Atlantis", "El Dorado"})
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "Atlantis") || !strings.Contains(msg, "El Dorado") {
		t.Errorf("aggregate error must name every city: %q", msg)
	}
}

func TestWeatherFetchAll_MalformedShapeFailsCity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"weird":true}`))
	}))
	defer server.Close()

	c := NewWeatherClient(server.URL, "test-key")
	if _, err := c.FetchAll(context.Background(), []string{"Tokyo"}); err == nil {
		t.Fatal("malformed shape must fail")
	}
}

// =====================================================
// Crypto
// =====================================================

const assetsBody = `{"data":[
	{"id":"bitcoin","symbol":"BTC","name":"Bitcoin","priceUsd":"50000.00",
	 "changePercent24Hr":"1.5","marketCapUsd":"900000000000","volumeUsd24Hr":"20000000000","supply":"19000000"},
	{"id":"ethereum","symbol":"ETH","name":"Ethereum","priceUsd":"3000.12",
	 "changePercent24Hr":"-0.7","marketCapUsd":"350000000000","volumeUsd24Hr":"9000000000","supply":"120000000"}
]}`

func TestCryptoFetchAssets_ParsesNumericStrings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "bitcoin,ethereum" {
			t.Errorf("ids query = %q", got)
		}
		w.Write([]byte(assetsBody))
	}))
	defer server.Close()

	c := NewCryptoClient(server.URL)
	results, err := c.FetchAssets(context.Background(), []string{"bitcoin", "ethereum"})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	btc := results["bitcoin"]
	if !btc.Price.Equal(decimal.RequireFromString("50000.00")) {
		t.Errorf("btc price = %s", btc.Price)
	}
	if !btc.CirculatingSupply.Equal(decimal.NewFromInt(19000000)) {
		t.Errorf("btc supply = %s", btc.CirculatingSupply)
	}
	eth := results["ethereum"]
	if !eth.PriceChange24h.Equal(decimal.RequireFromString("-0.7")) {
		t.Errorf("eth change = %s", eth.PriceChange24h)
	}
}

func TestCryptoFetchAssets_RetriesRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(assetsBody))
	}))
	defer server.Close()

	c := NewCryptoClient(server.URL)
	results, err := c.FetchAssets(context.Background(), []string{"bitcoin", "ethereum"})
	if err != nil {
		t.Fatalf("fetch failed after retry: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results", len(results))
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestCryptoFetchAssets_RateLimitExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewCryptoClient(server.URL)
	_, err := c.FetchAssets(context.Background(), []string{"bitcoin"})
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3 attempts", got)
	}
}

func TestCryptoFetchAssets_MalformedIsHardFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"data":[{"id":"bitcoin","priceUsd":"not-a-number"}]}`))
	}))
	defer server.Close()

	c := NewCryptoClient(server.URL)
	if _, err := c.FetchAssets(context.Background(), []string{"bitcoin"}); err == nil {
		t.Fatal("expected parse error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("malformed response must not retry, calls = %d", got)
	}
}

// =====================================================
// News
// =====================================================

const newsBody = `{"results":[
	{"title":"BTC rallies","link":"https://example.com/a","description":"up only","pubDate":"2026-01-02","source_id":"wire"},
	{"title":"ETH merges again","link":"https://example.com/b"},
	{"title":"c3","link":"https://example.com/c"},
	{"title":"c4","link":"https://example.com/d"},
	{"title":"c5","link":"https://example.com/e"},
	{"title":"c6","link":"https://example.com/f"},
	{"title":"c7","link":"https://example.com/g"}
]}`

func TestNewsFetchTop_CapsAndDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(newsBody))
	}))
	defer server.Close()

	c := NewNewsClient(server.URL, "test-key", 10*time.Minute)
	articles, err := c.FetchTop(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if len(articles) != 5 {
		t.Fatalf("got %d articles, want 5", len(articles))
	}
	if articles[0].Description != "up only" || articles[0].Source != "wire" {
		t.Errorf("article 0 = %+v", articles[0])
	}
	if articles[1].Description != "No description available" {
		t.Errorf("missing description not defaulted: %+v", articles[1])
	}
	if articles[1].Source != "Unknown Source" {
		t.Errorf("missing source not defaulted: %+v", articles[1])
	}
	if articles[1].PublishedAt == "" {
		t.Error("missing pubDate not defaulted")
	}
}

func TestNewsFetchTop_CacheWithinTTL(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(newsBody))
	}))
	defer server.Close()

	c := NewNewsClient(server.URL, "test-key", 10*time.Minute)

	current := time.Unix(10000, 0)
	c.SetNowFunc(func() time.Time { return current })

	first, err := c.FetchTop(context.Background())
	if err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}

	current = current.Add(5 * time.Minute)
	second, err := c.FetchTop(context.Background())
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("second call within TTL must hit the cache, calls = %d", calls)
	}
	if len(first) != len(second) || first[0] != second[0] {
		t.Error("cached articles differ from original")
	}

	// Past the TTL a fresh fetch happens.
	current = current.Add(6 * time.Minute)
	if _, err := c.FetchTop(context.Background()); err != nil {
		t.Fatalf("third fetch failed: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("call after TTL must refetch, calls = %d", calls)
	}
}

func TestNewsFetchTop_MissingTitleInvalidatesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"title":"","link":"https://example.com/a"}]}`))
	}))
	defer server.Close()

	c := NewNewsClient(server.URL, "test-key", 10*time.Minute)
	if _, err := c.FetchTop(context.Background()); err == nil {
		t.Fatal("article without title must reject the whole fetch")
	}
}

func TestNewsFetchTop_MissingKeyFailsFast(t *testing.T) {
	c := NewNewsClient("http://unused", "", 10*time.Minute)
	if _, err := c.FetchTop(context.Background()); err == nil {
		t.Fatal("expected configuration error")
	}
}
