package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/alert"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/event"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/feed"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/fetch"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/infra"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/store"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

type spyNotifier struct {
	mu    sync.Mutex
	notes []event.Notification
}

func (s *spyNotifier) Notify(n event.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, n)
}

func (s *spyNotifier) byType(t event.Type) []event.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []event.Notification
	for _, n := range s.notes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// TestEndToEnd_BulkThenPush walks the full pipeline: a bulk fetch
// establishes bitcoin at 50000, a push of 51000 lands a +2% significant
// change, a history point and a price alert.
func TestEndToEnd_BulkThenPush(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"bitcoin","symbol":"BTC","name":"Bitcoin",
			"priceUsd":"50000","changePercent24Hr":"1.0","marketCapUsd":"1","volumeUsd24Hr":"1","supply":"1"}]}`))
	}))
	defer api.Close()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"bitcoin":"51000"}`))
		time.Sleep(300 * time.Millisecond)
	}))
	defer ws.Close()

	cfg := infra.DefaultConfig()
	cfg.Dashboard.Cryptos = []string{"bitcoin"}
	cfg.API.Crypto.RestURL = api.URL

	notifier := &spyNotifier{}
	b := &Bootstrap{Config: cfg, Notifier: notifier, Store: store.New()}
	b.Crypto = fetch.NewCryptoClient(api.URL)

	ctx := context.Background()
	if err := b.RefreshCrypto(ctx); err != nil {
		t.Fatalf("bulk fetch failed: %v", err)
	}

	rec, ok := b.Store.Crypto("bitcoin")
	if !ok || !rec.Price.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("bulk fetch did not establish bitcoin: %+v", rec)
	}

	b.Alerts = alert.NewEngine(b.Store, notifier)
	b.Alerts.Start(ctx)
	defer b.Alerts.Stop()

	wsURL := "ws" + ws.URL[len("http"):]
	b.Feed = feed.NewManager(wsURL, cfg.Dashboard.Cryptos, b.Store, notifier, b.RefreshCrypto)
	b.Feed.Start(ctx)
	defer b.Feed.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, _ = b.Store.Crypto("bitcoin")
		if len(rec.History) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !rec.Price.Equal(decimal.NewFromInt(51000)) {
		t.Errorf("price = %s, want 51000", rec.Price)
	}
	if len(rec.History) != 1 {
		t.Fatalf("history length = %d, want 1", len(rec.History))
	}

	alerts := notifier.byType(event.EvPriceAlert)
	if len(alerts) != 1 {
		t.Fatalf("price alerts = %d, want 1", len(alerts))
	}
	want := "Bitcoin price increased by 2.00%"
	if alerts[0].Message != want {
		t.Errorf("alert = %q, want %q", alerts[0].Message, want)
	}
}
