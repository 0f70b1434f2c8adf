package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/event"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/store"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// State is the connection lifecycle state of the Manager.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFallback
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateFallback:
		return "FALLBACK"
	default:
		return "UNKNOWN"
	}
}

// BulkFetchFunc refreshes asset state when the stream is unavailable.
type BulkFetchFunc func(ctx context.Context) error

// Manager owns the streaming price-feed lifecycle: dial, read, reconnect
// with a fixed delay up to MaxRetries, then degrade to periodic bulk
// polling. Fallback is permanent for the lifetime of a Start; a fresh
// Start begins again from CONNECTING. The retry delay is fixed, not
// exponential.
type Manager struct {
	wsURL     string
	assets    []string
	store     *store.Store
	notifier  event.Notifier
	bulkFetch BulkFetchFunc

	RetryDelay       time.Duration
	MaxRetries       int
	FallbackPoll     time.Duration
	ReadTimeout      time.Duration
	HandshakeTimeout time.Duration

	mu      sync.RWMutex
	conn    *websocket.Conn
	state   State
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a feed manager for a fixed set of subscribed asset ids.
func NewManager(wsURL string, assets []string, st *store.Store, notifier event.Notifier, bulkFetch BulkFetchFunc) *Manager {
	return &Manager{
		wsURL:            wsURL,
		assets:           assets,
		store:            st,
		notifier:         notifier,
		bulkFetch:        bulkFetch,
		RetryDelay:       3 * time.Second,
		MaxRetries:       5,
		FallbackPoll:     60 * time.Second,
		ReadTimeout:      60 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Start launches the connection loop. Idempotent: calling Start on a
// running manager is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.runLoop(ctx)
}

// Stop tears the manager down: the connection, any pending retry timer and
// any fallback poll ticker are all cancelled before Stop returns.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.running = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.close()
	m.wg.Wait()
	m.setState(StateDisconnected)
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) url() string {
	return m.wsURL + "?assets=" + strings.Join(m.assets, ",")
}

func (m *Manager) runLoop(ctx context.Context) {
	defer m.wg.Done()
	retries := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m.setState(StateConnecting)
		if err := m.connect(ctx); err != nil {
			retries++
			slog.Warn("WS connection failed", "err", err, "retry", retries)
			m.setState(StateDisconnected)
			m.store.SetConnected(false)

			if retries >= m.MaxRetries {
				m.enterFallback(ctx)
				return
			}

			m.notify(event.EvConnectivity, "feed-retry",
				fmt.Sprintf("Disconnected from crypto feed. Retrying (%d/%d)...", retries, m.MaxRetries))

			select {
			case <-ctx.Done():
				return
			case <-time.After(m.RetryDelay):
				continue
			}
		}

		retries = 0
		m.setState(StateConnected)
		m.store.SetConnected(true)
		m.notify(event.EvConnectivity, "feed-connected", "Connected to crypto price feed")
		slog.Info("WS connected", "assets", len(m.assets))

		m.process(ctx)

		m.close()
		m.setState(StateDisconnected)
		m.store.SetConnected(false)

		if ctx.Err() != nil {
			return
		}

		retries++
		if retries >= m.MaxRetries {
			m.enterFallback(ctx)
			return
		}

		m.notify(event.EvConnectivity, "feed-retry",
			fmt.Sprintf("Disconnected from crypto feed. Retrying (%d/%d)...", retries, m.MaxRetries))

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.RetryDelay):
		}
	}
}

func (m *Manager) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: m.HandshakeTimeout}
	header := make(http.Header)

	conn, _, err := dialer.DialContext(ctx, m.url(), header)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	return nil
}

func (m *Manager) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m.mu.RLock()
		c := m.conn
		m.mu.RUnlock()
		if c == nil {
			return
		}

		c.SetReadDeadline(time.Now().Add(m.ReadTimeout))
		_, msg, err := c.ReadMessage()
		if err != nil {
			slog.Warn("WS read error", "err", err)
			return
		}

		m.handleMessage(msg)
	}
}

// handleMessage parses a flat {id: "price"} payload and applies each entry
// as a push update. A malformed payload is logged and dropped without
// tearing down the connection.
func (m *Manager) handleMessage(msg []byte) {
	var prices map[string]string
	if err := json.Unmarshal(msg, &prices); err != nil {
		slog.Warn("malformed price payload", "err", err)
		return
	}

	for id, raw := range prices {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			slog.Warn("malformed price value", "id", id, "value", raw)
			continue
		}
		m.store.ApplyPush(id, price)
	}
}

// enterFallback degrades to periodic bulk polling. The stream is never
// reopened for this mount; only a fresh Start leaves fallback.
func (m *Manager) enterFallback(ctx context.Context) {
	m.setState(StateFallback)
	m.notify(event.EvConnectivity, "feed-fallback", "Switching to fallback mode with periodic updates")
	slog.Warn("WS retries exhausted, entering fallback polling", "interval", m.FallbackPoll)

	if m.bulkFetch == nil {
		return
	}

	// Immediate refresh on entry, then poll on a fixed interval.
	if err := m.bulkFetch(ctx); err != nil {
		slog.Warn("fallback fetch failed", "err", err)
	}

	ticker := time.NewTicker(m.FallbackPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.bulkFetch(ctx); err != nil {
				slog.Warn("fallback fetch failed", "err", err)
			}
		}
	}
}

func (m *Manager) notify(t event.Type, key, message string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(event.Notification{
		Type:    t,
		Key:     key,
		Message: message,
		TsUnixM: time.Now().UnixMicro(),
	})
}

func (m *Manager) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}
