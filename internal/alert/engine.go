package alert

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/event"
	"github.com/AumPanchal10/CryptoWeather-Nexus/internal/store"
)

const (
	// Weather thresholds scanned on every poll cycle.
	highTempC     = 35.0
	highHumidityP = 85.0

	// DefaultDedupWindow suppresses repeats of the same (kind, entity)
	// alert. Qualifying conditions persist across scans, so without this
	// every cycle would re-toast the same alert.
	DefaultDedupWindow = 5 * time.Minute
)

// simulatedAlerts are the canned messages for the demo generator.
var simulatedAlerts = []string{
	"Heavy rain expected",
	"High temperature warning",
	"Strong winds alert",
	"Storm approaching",
}

// Engine translates store signals and periodic scans into deduplicated
// user-visible alerts.
type Engine struct {
	store    *store.Store
	notifier event.Notifier

	ScanInterval time.Duration
	DedupWindow  time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time // dedup key -> last emission
	now      func() time.Time

	unsubscribe func()
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewEngine creates an engine bound to a store and a notification sink.
func NewEngine(st *store.Store, notifier event.Notifier) *Engine {
	return &Engine{
		store:        st,
		notifier:     notifier,
		ScanInterval: 60 * time.Second,
		DedupWindow:  DefaultDedupWindow,
		lastSent:     make(map[string]time.Time),
		now:          time.Now,
	}
}

// SetNowFunc overrides the clock. Test hook.
func (e *Engine) SetNowFunc(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// Start subscribes to significant price changes and launches the periodic
// weather scan loop.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.unsubscribe = e.store.SubscribeChanges(nil, e.onPriceChange)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ticker := time.NewTicker(e.ScanInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.ScanWeather()
			}
		}
	}()
}

// Stop detaches from the store and stops the scan loop.
func (e *Engine) Stop() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// onPriceChange is the event-driven trigger: a significant push delta
// becomes an immediate price alert. Price alerts are not deduplicated;
// each significant change is a distinct observation worth surfacing.
func (e *Engine) onPriceChange(ev event.PriceChange) {
	msg := fmt.Sprintf("%s price %s by %s%%", ev.Name, ev.Direction, ev.DeltaPct.Abs().StringFixed(2))

	e.mu.Lock()
	now := e.now()
	e.lastSent["price-alert-"+ev.ID] = now
	e.mu.Unlock()

	e.send(event.EvPriceAlert, "price-alert-"+ev.ID, msg, now)
}

// ScanWeather is the poll-driven trigger: every city above a threshold
// produces one alert per dedup window.
func (e *Engine) ScanWeather() {
	for city, rec := range e.store.WeatherSnapshot() {
		if rec.Temperature > highTempC {
			msg := fmt.Sprintf("🌡️ High Temperature Alert for %s: %.1f°C", city, rec.Temperature)
			e.emit(event.EvTempAlert, "temp-alert-"+city, msg)
		}
		if rec.Humidity > highHumidityP {
			msg := fmt.Sprintf("💧 High Humidity Alert for %s: %.0f%%", city, rec.Humidity)
			e.emit(event.EvHumidityAlert, "humidity-alert-"+city, msg)
		}
	}
}

// SimulateWeatherAlert emits one random canned alert for one of the given
// cities. Demonstration side channel only; it shares the notification
// path but carries no correctness guarantees.
func (e *Engine) SimulateWeatherAlert(cities []string) {
	if len(cities) == 0 {
		return
	}
	city := cities[rand.Intn(len(cities))]
	alert := simulatedAlerts[rand.Intn(len(simulatedAlerts))]
	msg := fmt.Sprintf("Weather Alert for %s: %s", city, alert)
	e.emit(event.EvWeatherSim, "weather-alert-"+city, msg)
}

// RunSimulator fires SimulateWeatherAlert on a fixed interval until ctx
// is cancelled.
func (e *Engine) RunSimulator(ctx context.Context, cities []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.SimulateWeatherAlert(cities)
		}
	}
}

// emit sends a notification unless the same key fired within the dedup
// window.
func (e *Engine) emit(t event.Type, key, message string) {
	e.mu.Lock()
	now := e.now()
	if last, ok := e.lastSent[key]; ok && now.Sub(last) < e.DedupWindow {
		e.mu.Unlock()
		return
	}
	e.lastSent[key] = now
	e.mu.Unlock()

	e.send(t, key, message, now)
}

func (e *Engine) send(t event.Type, key, message string, now time.Time) {
	if e.notifier == nil {
		slog.Info("🔔 " + message)
		return
	}
	e.notifier.Notify(event.Notification{
		Type:    t,
		Key:     key,
		Message: message,
		TsUnixM: now.UnixMicro(),
	})
}
